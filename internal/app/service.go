/**
 * @description
 * This file contains the core business logic for the dispatch-service. The `Service`
 * struct orchestrates the instant-dispatch marketplace: request creation with
 * eligibility fan-out, competing offers, and the exclusivity-critical acceptance
 * step that assigns exactly one provider.
 *
 * Key features:
 * - Request creation resolves the city (client profile first, geocoder second)
 *   and broadcasts to eligible providers without blocking on delivery.
 * - Acceptance delegates to the repository's single-transaction accept, then
 *   performs best-effort side effects (revenue record, notification, event).
 * - Publishes a change notification to RabbitMQ on every mutating operation.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/geoclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/allobrico/dispatch-service/internal/domain"
	"github.com/allobrico/dispatch-service/internal/store"
	"github.com/allobrico/dispatch-service/pkg/geoclient"
	"github.com/allobrico/dispatch-service/pkg/rabbitmq"
)

const (
	// RequestTTL is the fixed offer window for a new request.
	RequestTTL = 15 * time.Minute

	// ProviderSharePercent is the fixed revenue split recorded at acceptance
	// (60/40 provider/company). Deliberately a constant, not configuration.
	ProviderSharePercent = 60

	// OfferMessageMaxLen bounds the optional free-text note on an offer.
	OfferMessageMaxLen = 500

	// LocationPingInterval is the source interval for live-position pings; the
	// rate limiter budget is derived from it.
	LocationPingInterval = 15 * time.Second

	addressSummaryMaxLen = 80
	geoResolveTimeout    = 10 * time.Second
	fanOutTimeout        = 30 * time.Second
)

var (
	ErrEmptyAddress     = errors.New("address must not be empty")
	ErrEmptyDescription = errors.New("description must not be empty")
	ErrInvalidAmount    = errors.New("amount must be zero or positive")
	ErrRateLimited      = errors.New("too many location pings")
)

// AddressResolver is the geocoding collaborator consumed by request creation.
// Failures are swallowed at the boundary; dispatch never depends on it for
// correctness.
type AddressResolver interface {
	Resolve(ctx context.Context, addressText string) (*geoclient.Location, error)
	ReverseCity(ctx context.Context, city string) (string, error)
}

// Notifier delivers a message to a specific user through push and/or text
// channels. Best-effort: callers log failures and move on.
type Notifier interface {
	PushToUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error
	TextToPhone(ctx context.Context, phone, body string) error
}

// RateLimiter consumes one token from a fixed window. A nil limiter disables
// limiting entirely.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for instant dispatch.
type Service struct {
	repo          store.Repository
	geo           AddressResolver
	notifier      Notifier
	events        rabbitmq.Publisher
	rateLimiter   RateLimiter
	normalizeCity CityNormalizer
	pingLimit     int
}

// NewService creates a new dispatch service instance. The city normalizer is
// injected so alias handling can evolve without touching dispatch logic.
func NewService(repo store.Repository, geo AddressResolver, notifier Notifier, events rabbitmq.Publisher, normalize CityNormalizer) *Service {
	if normalize == nil {
		normalize = NormalizeCity
	}
	return &Service{
		repo:          repo,
		geo:           geo,
		notifier:      notifier,
		events:        events,
		normalizeCity: normalize,
		pingLimit:     int(time.Minute / LocationPingInterval),
	}
}

// SetRateLimiter attaches the distributed rate limiter used for location pings.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.rateLimiter = limiter
}

// SetPingLimit overrides the per-minute location ping budget.
func (s *Service) SetPingLimit(limit int) {
	if limit > 0 {
		s.pingLimit = limit
	}
}

// CreateRequest validates and persists a new pending request, then fans out
// notifications to eligible providers. The fan-out is fire-and-forget: it runs
// on its own context and never blocks or fails the creation.
func (s *Service) CreateRequest(ctx context.Context, clientID uuid.UUID, payload domain.CreateRequestPayload) (*domain.CreateRequestResult, error) {
	address := strings.TrimSpace(payload.Address)
	description := strings.TrimSpace(payload.Description)
	if address == "" {
		return nil, ErrEmptyAddress
	}
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if payload.ProposedAmount != nil && *payload.ProposedAmount < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	req := &domain.Request{
		ID:             uuid.New(),
		ClientID:       clientID,
		Address:        address,
		Description:    description,
		ProposedAmount: payload.ProposedAmount,
		ServiceID:      payload.ServiceID,
		City:           s.resolveCity(ctx, clientID, address),
		Status:         domain.RequestStatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(RequestTTL),
	}

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.publishEvent(ctx, domain.EventRequestCreated, domain.DispatchEvent{
		RequestID: req.ID,
		ClientID:  req.ClientID,
		Status:    req.Status,
		Timestamp: now,
	})

	// Detached context: the HTTP request may finish before the fan-out does.
	go s.fanOutNewRequest(context.Background(), req)

	return &domain.CreateRequestResult{
		RequestID: req.ID,
		Status:    req.Status,
		ExpiresAt: req.ExpiresAt,
	}, nil
}

// resolveCity prefers the client's saved city over geocoding the free-text
// address. Both sources are best-effort; a request without a resolved city is
// broadcast to all eligible providers.
func (s *Service) resolveCity(ctx context.Context, clientID uuid.UUID, address string) *string {
	client, err := s.repo.FindClientByID(ctx, clientID)
	if err != nil {
		log.Printf("level=warn component=dispatch op=resolve_city msg=\"client lookup failed\" client_id=%s err=%v", clientID, err)
	} else if client.City != nil && strings.TrimSpace(*client.City) != "" {
		canonical := s.reverseCity(ctx, *client.City)
		return &canonical
	}

	if s.geo == nil {
		return nil
	}

	geoCtx, cancel := context.WithTimeout(ctx, geoResolveTimeout)
	defer cancel()
	loc, err := s.geo.Resolve(geoCtx, address)
	if err != nil {
		log.Printf("level=warn component=dispatch op=resolve_city msg=\"geocoding failed; broadcasting without city\" client_id=%s err=%v", clientID, err)
		return nil
	}
	if strings.TrimSpace(loc.City) == "" {
		return nil
	}
	canonical := s.reverseCity(ctx, loc.City)
	return &canonical
}

func (s *Service) reverseCity(ctx context.Context, city string) string {
	if s.geo == nil {
		return strings.TrimSpace(city)
	}
	geoCtx, cancel := context.WithTimeout(ctx, geoResolveTimeout)
	defer cancel()
	canonical, err := s.geo.ReverseCity(geoCtx, city)
	if err != nil {
		log.Printf("level=warn component=dispatch op=reverse_city msg=\"canonicalization failed; using raw city\" city=%q err=%v", city, err)
		return strings.TrimSpace(city)
	}
	return canonical
}

// ListOffers returns the pending offers on a request, enriched with provider
// display data and on-read rating aggregates. Only the owning client may list.
func (s *Service) ListOffers(ctx context.Context, requestID, callerID uuid.UUID) ([]domain.OfferView, error) {
	req, err := s.repo.FindRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ClientID != callerID {
		return nil, store.ErrNotRequestOwner
	}

	offers, providers, err := s.repo.ListPendingOffers(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	providerIDs := make([]uuid.UUID, 0, len(offers))
	for _, o := range offers {
		providerIDs = append(providerIDs, o.ProviderID)
	}
	ratings, err := s.repo.GetProviderRatings(ctx, providerIDs)
	if err != nil {
		log.Printf("level=warn component=dispatch op=list_offers msg=\"rating aggregation failed; returning offers without ratings\" request_id=%s err=%v", requestID, err)
		ratings = map[uuid.UUID]domain.ProviderRating{}
	}

	views := make([]domain.OfferView, 0, len(offers))
	for i, o := range offers {
		view := domain.OfferView{
			OfferID:      o.ID,
			ProviderID:   o.ProviderID,
			Amount:       o.Amount,
			Message:      o.Message,
			ProviderName: providers[i].DisplayName,
			Certified:    providers[i].Certified,
			CreatedAt:    o.CreatedAt,
		}
		if rating, ok := ratings[o.ProviderID]; ok {
			view.Rating = &rating
		}
		views = append(views, view)
	}

	return views, nil
}

// SubmitOffer records a provider's bid on a pending request. A provider gets
// at most one offer per request: the repository refuses duplicates, it never
// updates them. On success the owning client is notified best-effort.
func (s *Service) SubmitOffer(ctx context.Context, requestID, providerID uuid.UUID, payload domain.SubmitOfferPayload) (*domain.Offer, error) {
	if payload.Amount < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	offer := &domain.Offer{
		ID:         uuid.New(),
		RequestID:  requestID,
		ProviderID: providerID,
		Amount:     payload.Amount,
		Message:    boundOfferMessage(payload.Message),
		Status:     domain.OfferStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.CreateOffer(ctx, offer, now); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, domain.EventOfferSubmitted, domain.DispatchEvent{
		RequestID:  requestID,
		ProviderID: &providerID,
		OfferID:    &offer.ID,
		Status:     offer.Status,
		Timestamp:  now,
	})

	if req, err := s.repo.FindRequestByID(ctx, requestID); err == nil {
		s.notifyUser(ctx, req.ClientID, "Nouvelle offre reçue",
			fmt.Sprintf("Un plombier propose %s pour votre demande.", formatAmount(offer.Amount)),
			map[string]string{"request_id": requestID.String(), "offer_id": offer.ID.String()})
	}

	return offer, nil
}

// AcceptOffer runs the exclusivity-critical acceptance transaction, then the
// post-commit side effects. Revenue creation and notification are best-effort:
// they never undo an accept that already committed.
func (s *Service) AcceptOffer(ctx context.Context, requestID, offerID, callerID uuid.UUID) (*domain.AcceptOfferResult, error) {
	now := time.Now().UTC()
	result, err := s.repo.AcceptOfferTx(ctx, requestID, offerID, callerID, now)
	if err != nil {
		return nil, err
	}

	s.recordRevenue(ctx, result, callerID)

	s.publishEvent(ctx, domain.EventOfferAccepted, domain.DispatchEvent{
		RequestID:  result.RequestID,
		ClientID:   callerID,
		ProviderID: &result.ProviderID,
		OfferID:    &result.OfferID,
		Status:     domain.RequestStatusAccepted,
		Timestamp:  now,
	})

	s.notifyUser(ctx, result.ProviderID, "Offre acceptée",
		fmt.Sprintf("Votre offre de %s a été acceptée. Le client vous attend.", formatAmount(result.Amount)),
		map[string]string{"request_id": result.RequestID.String()})

	return result, nil
}

// recordRevenue appends the 60/40 accounting entry for an acceptance. A
// failure here is a billing incident, not a dispatch failure.
func (s *Service) recordRevenue(ctx context.Context, result *domain.AcceptOfferResult, clientID uuid.UUID) {
	providerShare := result.Amount * ProviderSharePercent / 100
	rec := &domain.RevenueRecord{
		ID:                   uuid.New(),
		RequestID:            result.RequestID,
		ClientID:             clientID,
		ProviderID:           result.ProviderID,
		Amount:               result.Amount,
		ProviderShare:        providerShare,
		CompanyShare:         result.Amount - providerShare,
		ProviderSharePercent: ProviderSharePercent,
		CreatedAt:            result.AcceptedAt,
	}
	if err := s.repo.CreateRevenueRecord(ctx, rec); err != nil {
		log.Printf("level=error component=dispatch op=accept_offer msg=\"CRITICAL: revenue record creation failed\" request_id=%s provider_id=%s amount=%d err=%v",
			result.RequestID, result.ProviderID, result.Amount, err)
	}
}

// UpdateAvailability lets a provider flip its own availability record.
func (s *Service) UpdateAvailability(ctx context.Context, providerID uuid.UUID, payload domain.AvailabilityPayload) error {
	return s.repo.UpdateProviderAvailability(ctx, providerID, payload)
}

// notifyUser pushes to a user and swallows failures. Notification delivery is
// never part of a dispatch guarantee.
func (s *Service) notifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PushToUser(ctx, userID, title, body, data); err != nil {
		log.Printf("level=warn component=dispatch op=notify msg=\"push delivery failed\" user_id=%s err=%v", userID, err)
	}
}

// publishEvent emits a change notification for live subscribers. Best-effort.
func (s *Service) publishEvent(ctx context.Context, routingKey string, event domain.DispatchEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishDispatchEvent(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=dispatch op=publish_event msg=\"event publish failed\" routing_key=%s request_id=%s err=%v", routingKey, event.RequestID, err)
	}
}

// boundOfferMessage trims and truncates the optional offer note; an empty
// message is stored as absent.
func boundOfferMessage(message *string) *string {
	if message == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*message)
	if trimmed == "" {
		return nil
	}
	trimmed = truncateRunes(trimmed, OfferMessageMaxLen)
	return &trimmed
}

// truncateRunes bounds s to max characters. Counting runes, not bytes, keeps
// accented text from being cut short or split mid-character into invalid UTF-8.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// formatAmount renders centimes as a human dirham amount for notifications.
func formatAmount(centimes int64) string {
	if centimes%100 == 0 {
		return fmt.Sprintf("%d MAD", centimes/100)
	}
	return fmt.Sprintf("%d.%02d MAD", centimes/100, centimes%100)
}
