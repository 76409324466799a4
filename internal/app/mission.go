/**
 * @description
 * Mission tracking for an accepted request: the assigned provider's ETA
 * commitment, rate-limited live-position pings, photo exchange, and
 * completion. Every operation re-checks the accepted state and the caller's
 * role; missions only move forward.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/allobrico/dispatch-service/internal/domain"
	"github.com/allobrico/dispatch-service/internal/store"
)

const (
	// EtaMinMinutes and EtaMaxMinutes bound the provider's ETA commitment.
	EtaMinMinutes = 5
	EtaMaxMinutes = 120

	locationRateScope = "mission_location"
)

var (
	ErrInvalidEta         = errors.New("eta must be between 5 and 120 minutes")
	ErrPhotosNotRequested = errors.New("provider has not requested photos")
	ErrNoPhotoURLs        = errors.New("at least one photo url is required")
)

// RateLimitedError matches ErrRateLimited under errors.Is and carries the
// window reset for the Retry-After header.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// SetEtaResult is the ETA commitment echoed back to the provider, including
// the client-facing phrase.
type SetEtaResult struct {
	RequestID  uuid.UUID `json:"request_id"`
	EtaMinutes int       `json:"eta_minutes"`
	EtaAt      time.Time `json:"eta_at"`
	Phrase     string    `json:"phrase"`
}

// SetEta records the assigned provider's arrival commitment on an accepted
// request. Re-submitting replaces the previous value. The client is told in a
// bucketed French phrase, not the raw minute count.
func (s *Service) SetEta(ctx context.Context, requestID, providerID uuid.UUID, payload domain.SetEtaPayload) (*SetEtaResult, error) {
	if payload.EtaMinutes < EtaMinMinutes || payload.EtaMinutes > EtaMaxMinutes {
		return nil, ErrInvalidEta
	}

	now := time.Now().UTC()
	etaAt := now.Add(time.Duration(payload.EtaMinutes) * time.Minute)
	if err := s.repo.SetRequestEta(ctx, requestID, providerID, payload.EtaMinutes, etaAt); err != nil {
		return nil, err
	}

	phrase := EtaPhrase(payload.EtaMinutes)

	s.publishEvent(ctx, domain.EventMissionEta, domain.DispatchEvent{
		RequestID:  requestID,
		ProviderID: &providerID,
		Status:     domain.RequestStatusAccepted,
		Timestamp:  now,
	})

	if req, err := s.repo.FindRequestByID(ctx, requestID); err == nil {
		s.notifyUser(ctx, req.ClientID, "Votre plombier arrive",
			fmt.Sprintf("Le plombier arrive %s.", phrase),
			map[string]string{"request_id": requestID.String()})
	}

	return &SetEtaResult{
		RequestID:  requestID,
		EtaMinutes: payload.EtaMinutes,
		EtaAt:      etaAt,
		Phrase:     phrase,
	}, nil
}

// EtaPhrase buckets an ETA in minutes into the French phrase shown to the
// client. Hours round half-up, so 90 minutes reads as two hours.
func EtaPhrase(minutes int) string {
	switch {
	case minutes <= 15:
		return fmt.Sprintf("dans %d min", minutes)
	case minutes <= 60:
		return fmt.Sprintf("dans environ %d min", minutes)
	default:
		hours := (minutes + 30) / 60
		return fmt.Sprintf("dans environ %dh", hours)
	}
}

// PingLocation stores one live-position sample from the assigned provider.
// Latest wins; the distributed rate limiter enforces the source interval so a
// misbehaving device cannot flood the table.
func (s *Service) PingLocation(ctx context.Context, requestID, providerID uuid.UUID, payload domain.PingLocationPayload) error {
	req, err := s.repo.FindRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if err := requireAssignedProvider(req, providerID); err != nil {
		return err
	}

	if s.rateLimiter != nil {
		subject := fmt.Sprintf("%s:%s", requestID, providerID)
		count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, locationRateScope, subject, s.pingLimit, time.Minute)
		if err != nil {
			// A broken limiter must not take location sharing down with it.
			log.Printf("level=warn component=dispatch op=ping_location msg=\"rate limiter unavailable; allowing ping\" request_id=%s err=%v", requestID, err)
		} else if count > s.pingLimit {
			return &RateLimitedError{RetryAfterSeconds: retryAfter}
		}
	}

	if err := s.repo.SaveLiveLocation(ctx, requestID, payload.Lat, payload.Lng); err != nil {
		return fmt.Errorf("failed to save live location: %w", err)
	}
	return nil
}

// LiveLocation returns the latest provider position for an accepted request.
// Only the owning client and the assigned provider may read it.
func (s *Service) LiveLocation(ctx context.Context, requestID, callerID uuid.UUID) (*domain.LiveLocation, error) {
	req, err := s.repo.FindRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ClientID != callerID && (req.ProviderID == nil || *req.ProviderID != callerID) {
		return nil, store.ErrNotRequestOwner
	}
	return s.repo.FindLiveLocation(ctx, requestID)
}

// RequestPhotos flags the mission so the client can attach photos of the
// problem. Only the assigned provider may ask, and only while accepted.
func (s *Service) RequestPhotos(ctx context.Context, requestID, providerID uuid.UUID) error {
	req, err := s.repo.FindRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if err := requireAssignedProvider(req, providerID); err != nil {
		return err
	}
	if err := s.repo.MarkPhotosRequested(ctx, requestID); err != nil {
		return err
	}

	s.notifyUser(ctx, req.ClientID, "Photos demandées",
		"Le plombier souhaite voir des photos du problème avant d'arriver.",
		map[string]string{"request_id": requestID.String()})
	return nil
}

// SubmitPhotos appends the client's photo URLs to the mission. Allowed only
// after the provider asked for them.
func (s *Service) SubmitPhotos(ctx context.Context, requestID, clientID uuid.UUID, payload domain.SubmitPhotosPayload) error {
	if len(payload.PhotoURLs) == 0 {
		return ErrNoPhotoURLs
	}

	req, err := s.repo.FindRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ClientID != clientID {
		return store.ErrNotRequestOwner
	}
	if req.Status != domain.RequestStatusAccepted {
		return store.ErrRequestNotAccepted
	}
	if !req.PhotoRequested {
		return ErrPhotosNotRequested
	}

	return s.repo.AppendRequestPhotos(ctx, requestID, payload.PhotoURLs)
}

// CompleteMission moves an accepted request to completed. Only the assigned
// provider may complete; completion unlocks reviews on both sides.
func (s *Service) CompleteMission(ctx context.Context, requestID, providerID uuid.UUID) error {
	now := time.Now().UTC()
	if err := s.repo.CompleteRequest(ctx, requestID, providerID, now); err != nil {
		return err
	}

	s.publishEvent(ctx, domain.EventMissionCompleted, domain.DispatchEvent{
		RequestID:  requestID,
		ProviderID: &providerID,
		Status:     domain.RequestStatusCompleted,
		Timestamp:  now,
	})

	if req, err := s.repo.FindRequestByID(ctx, requestID); err == nil {
		s.notifyUser(ctx, req.ClientID, "Intervention terminée",
			"Votre dépannage est terminé. Vous pouvez laisser un avis sur le plombier.",
			map[string]string{"request_id": requestID.String()})
	}
	return nil
}

// requireAssignedProvider checks that the caller is the provider a mission in
// the accepted state was assigned to.
func requireAssignedProvider(req *domain.Request, providerID uuid.UUID) error {
	if req.Status != domain.RequestStatusAccepted {
		return store.ErrRequestNotAccepted
	}
	if req.ProviderID == nil || *req.ProviderID != providerID {
		return store.ErrNotAssignedProvider
	}
	return nil
}
