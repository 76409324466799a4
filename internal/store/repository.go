/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the dispatch-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allobrico/dispatch-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Client and provider methods
	FindClientByID(ctx context.Context, clientID uuid.UUID) (*domain.Client, error)
	FindProviderAvailability(ctx context.Context, providerID uuid.UUID) (*domain.ProviderAvailability, error)
	// ListAvailableProviders returns providers with the availability flag set
	// whose validation status is absent or "validated". City matching is the
	// caller's concern (pluggable normalization lives in the app layer).
	ListAvailableProviders(ctx context.Context) ([]domain.ProviderAvailability, error)
	UpdateProviderAvailability(ctx context.Context, providerID uuid.UUID, payload domain.AvailabilityPayload) error

	// Request methods
	CreateRequest(ctx context.Context, req *domain.Request) error
	FindRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.Request, error)
	// MarkExpiredRequests flips every pending request whose window has elapsed
	// to expired and returns the affected rows. Lazy expiration at read/write
	// time remains the correctness mechanism; this is for query efficiency.
	MarkExpiredRequests(ctx context.Context, now time.Time) ([]domain.Request, error)

	// Offer methods
	// CreateOffer re-validates the parent request (pending, not expired) inside
	// the same transaction as the insert. Returns ErrDuplicateOffer when the
	// (request, provider) pair already has an offer.
	CreateOffer(ctx context.Context, offer *domain.Offer, now time.Time) error
	FindOfferByID(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error)
	ListPendingOffers(ctx context.Context, requestID uuid.UUID) ([]domain.Offer, []domain.ProviderAvailability, error)
	// AcceptOfferTx is the exclusivity-critical transaction: it locks the
	// request row, re-validates every precondition at commit time, then
	// atomically accepts the chosen offer, rejects all siblings, and moves the
	// request to accepted. First committer wins; racers get the precondition
	// sentinels.
	AcceptOfferTx(ctx context.Context, requestID, offerID, clientID uuid.UUID, now time.Time) (*domain.AcceptOfferResult, error)

	// Mission methods
	SetRequestEta(ctx context.Context, requestID, providerID uuid.UUID, etaMinutes int, etaAt time.Time) error
	SaveLiveLocation(ctx context.Context, requestID uuid.UUID, lat, lng float64) error
	FindLiveLocation(ctx context.Context, requestID uuid.UUID) (*domain.LiveLocation, error)
	MarkPhotosRequested(ctx context.Context, requestID uuid.UUID) error
	AppendRequestPhotos(ctx context.Context, requestID uuid.UUID, urls []string) error
	CompleteRequest(ctx context.Context, requestID, providerID uuid.UUID, now time.Time) error

	// Revenue methods
	CreateRevenueRecord(ctx context.Context, rec *domain.RevenueRecord) error

	// Review methods
	CreateReview(ctx context.Context, review *domain.Review) error
	GetProviderRatings(ctx context.Context, providerIDs []uuid.UUID) (map[uuid.UUID]domain.ProviderRating, error)
}
