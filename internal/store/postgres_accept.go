package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/allobrico/dispatch-service/internal/domain"
)

// AcceptOfferTx performs the atomic acceptance of one offer on a request.
//
// The transaction locks the request row FOR UPDATE, so concurrent accepts
// serialize behind the first committer. Every precondition is re-validated
// after the lock is held, not just at read time: a racer that lost the lock
// race observes status != pending and fails with ErrRequestNotPending. The
// winning offer, all sibling offers, and the request move in one commit;
// there is no intermediate state in which two offers are accepted or a
// provider is assigned to a non-accepted request.
func (r *PostgresRepository) AcceptOfferTx(ctx context.Context, requestID, offerID, clientID uuid.UUID, now time.Time) (*domain.AcceptOfferResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin accept transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the request row and re-validate ownership, state and expiry.
	var ownerID uuid.UUID
	var status string
	var expiresAt time.Time
	requestQuery := `
		SELECT client_id, status, expires_at
		FROM dispatch_requests
		WHERE id = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, requestQuery, requestID).Scan(&ownerID, &status, &expiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to lock request: %w", err)
	}

	if ownerID != clientID {
		return nil, ErrNotRequestOwner
	}
	if status == domain.RequestStatusExpired {
		return nil, ErrRequestExpired
	}
	if status != domain.RequestStatusPending {
		return nil, ErrRequestNotPending
	}
	if !expiresAt.After(now) {
		return nil, ErrRequestExpired
	}

	// 2. Lock the chosen offer and re-validate it against the request.
	var offerRequestID, providerID uuid.UUID
	var offerStatus string
	var amount int64
	offerQuery := `
		SELECT request_id, provider_id, amount, status
		FROM dispatch_offers
		WHERE id = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, offerQuery, offerID).Scan(&offerRequestID, &providerID, &amount, &offerStatus)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to lock offer: %w", err)
	}

	if offerRequestID != requestID {
		return nil, ErrOfferMismatch
	}
	if offerStatus != domain.OfferStatusPending {
		return nil, ErrOfferNotPending
	}

	// 3. Assign the provider and move the request forward.
	updateRequestQuery := `
		UPDATE dispatch_requests
		SET status = $2, provider_id = $3, accepted_at = $4
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateRequestQuery, requestID, domain.RequestStatusAccepted, providerID, now); err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	// 4. Accept the winning offer.
	acceptOfferQuery := `
		UPDATE dispatch_offers
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, acceptOfferQuery, offerID, domain.OfferStatusAccepted, now); err != nil {
		return nil, fmt.Errorf("failed to accept offer: %w", err)
	}

	// 5. Reject every sibling in the same commit.
	rejectSiblingsQuery := `
		UPDATE dispatch_offers
		SET status = $3, updated_at = $4
		WHERE request_id = $1 AND id <> $2 AND status = $5
	`
	if _, err := tx.Exec(ctx, rejectSiblingsQuery, requestID, offerID,
		domain.OfferStatusRejected, now, domain.OfferStatusPending); err != nil {
		return nil, fmt.Errorf("failed to reject sibling offers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit accept transaction: %w", err)
	}

	return &domain.AcceptOfferResult{
		RequestID:  requestID,
		OfferID:    offerID,
		ProviderID: providerID,
		Amount:     amount,
		AcceptedAt: now,
	}, nil
}
