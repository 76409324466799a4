/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to dispatch requests, offers, provider availability, revenue and reviews.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/allobrico/dispatch-service/internal/domain"
)

var (
	ErrClientNotFound   = errors.New("client not found")
	ErrProviderNotFound = errors.New("provider not found")
	ErrRequestNotFound  = errors.New("request not found")
	ErrOfferNotFound    = errors.New("offer not found")

	// Precondition sentinels surfaced by the accept/submit transactions when
	// re-validation at commit time fails.
	ErrNotRequestOwner     = errors.New("caller does not own the request")
	ErrRequestNotPending   = errors.New("request is not pending")
	ErrRequestExpired      = errors.New("request offer window has elapsed")
	ErrRequestNotAccepted  = errors.New("request is not accepted")
	ErrNotAssignedProvider = errors.New("caller is not the assigned provider")
	ErrOfferNotPending     = errors.New("offer is not pending")
	ErrOfferMismatch       = errors.New("offer does not belong to the request")
	ErrDuplicateOffer      = errors.New("provider already has an offer on this request")
	ErrDuplicateReview     = errors.New("review already submitted for this request")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindClientByID retrieves the dispatch-relevant view of a client profile.
func (r *PostgresRepository) FindClientByID(ctx context.Context, clientID uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	query := `SELECT id, display_name, city, phone FROM clients WHERE id = $1`
	err := r.db.QueryRow(ctx, query, clientID).Scan(&client.ID, &client.DisplayName, &client.City, &client.Phone)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

// FindProviderAvailability retrieves a single provider's availability record.
func (r *PostgresRepository) FindProviderAvailability(ctx context.Context, providerID uuid.UUID) (*domain.ProviderAvailability, error) {
	var p domain.ProviderAvailability
	query := `
		SELECT provider_id, available, validation_status, city, lat, lng, display_name, certified, phone, updated_at
		FROM provider_availability
		WHERE provider_id = $1
	`
	err := r.db.QueryRow(ctx, query, providerID).Scan(
		&p.ProviderID, &p.Available, &p.ValidationStatus, &p.City, &p.Lat, &p.Lng,
		&p.DisplayName, &p.Certified, &p.Phone, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListAvailableProviders returns every provider that is flagged available and
// whose validation status is absent or "validated". A missing validation
// status keeps legacy records eligible.
func (r *PostgresRepository) ListAvailableProviders(ctx context.Context) ([]domain.ProviderAvailability, error) {
	query := `
		SELECT provider_id, available, validation_status, city, lat, lng, display_name, certified, phone, updated_at
		FROM provider_availability
		WHERE available = true
		  AND (validation_status IS NULL OR validation_status = $1)
	`
	rows, err := r.db.Query(ctx, query, domain.ProviderValidated)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []domain.ProviderAvailability
	for rows.Next() {
		var p domain.ProviderAvailability
		err := rows.Scan(
			&p.ProviderID, &p.Available, &p.ValidationStatus, &p.City, &p.Lat, &p.Lng,
			&p.DisplayName, &p.Certified, &p.Phone, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	return providers, rows.Err()
}

// UpdateProviderAvailability lets a provider flip its availability flag and
// refresh its stored city/position. Validation status is admin-owned and never
// touched here.
func (r *PostgresRepository) UpdateProviderAvailability(ctx context.Context, providerID uuid.UUID, payload domain.AvailabilityPayload) error {
	query := `
		UPDATE provider_availability
		SET available = $2,
		    city = COALESCE($3, city),
		    lat = COALESCE($4, lat),
		    lng = COALESCE($5, lng),
		    updated_at = NOW()
		WHERE provider_id = $1
	`
	result, err := r.db.Exec(ctx, query, providerID, payload.Available, payload.City, payload.Lat, payload.Lng)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// CreateRequest inserts a new pending request.
func (r *PostgresRepository) CreateRequest(ctx context.Context, req *domain.Request) error {
	query := `
		INSERT INTO dispatch_requests (
			id, client_id, address, description, proposed_amount, service_id, city,
			status, photo_requested, photo_urls, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, '{}', $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		req.ID, req.ClientID, req.Address, req.Description, req.ProposedAmount,
		req.ServiceID, req.City, req.Status, req.CreatedAt, req.ExpiresAt,
	)
	return err
}

// FindRequestByID retrieves a request by its ID.
func (r *PostgresRepository) FindRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.Request, error) {
	var req domain.Request
	query := `
		SELECT id, client_id, address, description, proposed_amount, service_id, city,
		       status, provider_id, eta_minutes, eta_at, photo_requested, photo_urls,
		       created_at, expires_at, accepted_at, completed_at
		FROM dispatch_requests
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, requestID).Scan(
		&req.ID, &req.ClientID, &req.Address, &req.Description, &req.ProposedAmount,
		&req.ServiceID, &req.City, &req.Status, &req.ProviderID, &req.EtaMinutes,
		&req.EtaAt, &req.PhotoRequested, &req.PhotoURLs, &req.CreatedAt, &req.ExpiresAt,
		&req.AcceptedAt, &req.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// MarkExpiredRequests flips elapsed pending requests to expired and returns
// the affected rows so the caller can publish change notifications.
func (r *PostgresRepository) MarkExpiredRequests(ctx context.Context, now time.Time) ([]domain.Request, error) {
	query := `
		UPDATE dispatch_requests
		SET status = $1
		WHERE status = $2 AND expires_at <= $3
		RETURNING id, client_id, address, description, proposed_amount, service_id, city,
		          status, provider_id, eta_minutes, eta_at, photo_requested, photo_urls,
		          created_at, expires_at, accepted_at, completed_at
	`
	rows, err := r.db.Query(ctx, query, domain.RequestStatusExpired, domain.RequestStatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Request
	for rows.Next() {
		var req domain.Request
		err := rows.Scan(
			&req.ID, &req.ClientID, &req.Address, &req.Description, &req.ProposedAmount,
			&req.ServiceID, &req.City, &req.Status, &req.ProviderID, &req.EtaMinutes,
			&req.EtaAt, &req.PhotoRequested, &req.PhotoURLs, &req.CreatedAt, &req.ExpiresAt,
			&req.AcceptedAt, &req.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		expired = append(expired, req)
	}

	return expired, rows.Err()
}

// CreateOffer inserts a provider's bid. The parent request is locked FOR SHARE
// and re-validated inside the same transaction so an offer can never land on a
// request that just stopped being pending. The UNIQUE (request_id, provider_id)
// constraint turns a duplicate submit into ErrDuplicateOffer without a second row.
func (r *PostgresRepository) CreateOffer(ctx context.Context, offer *domain.Offer, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin offer transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	var expiresAt time.Time
	lockQuery := `
		SELECT status, expires_at
		FROM dispatch_requests
		WHERE id = $1
		FOR SHARE
	`
	err = tx.QueryRow(ctx, lockQuery, offer.RequestID).Scan(&status, &expiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrRequestNotFound
		}
		return fmt.Errorf("failed to lock request for offer: %w", err)
	}

	if status == domain.RequestStatusExpired {
		return ErrRequestExpired
	}
	if status != domain.RequestStatusPending {
		return ErrRequestNotPending
	}
	if !expiresAt.After(now) {
		return ErrRequestExpired
	}

	insertQuery := `
		INSERT INTO dispatch_offers (id, request_id, provider_id, amount, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err = tx.Exec(ctx, insertQuery,
		offer.ID, offer.RequestID, offer.ProviderID, offer.Amount, offer.Message,
		offer.Status, offer.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOffer
		}
		return fmt.Errorf("failed to insert offer: %w", err)
	}

	return tx.Commit(ctx)
}

// FindOfferByID retrieves an offer by its ID.
func (r *PostgresRepository) FindOfferByID(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error) {
	var offer domain.Offer
	query := `
		SELECT id, request_id, provider_id, amount, message, status, created_at, updated_at
		FROM dispatch_offers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, offerID).Scan(
		&offer.ID, &offer.RequestID, &offer.ProviderID, &offer.Amount,
		&offer.Message, &offer.Status, &offer.CreatedAt, &offer.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return &offer, nil
}

// ListPendingOffers returns the pending offers on a request together with the
// offering providers' availability records (display name, certification) so
// the app layer can build the enriched client view in one round trip.
func (r *PostgresRepository) ListPendingOffers(ctx context.Context, requestID uuid.UUID) ([]domain.Offer, []domain.ProviderAvailability, error) {
	query := `
		SELECT o.id, o.request_id, o.provider_id, o.amount, o.message, o.status, o.created_at, o.updated_at,
		       p.provider_id, p.available, p.validation_status, p.city, p.lat, p.lng,
		       p.display_name, p.certified, p.phone, p.updated_at
		FROM dispatch_offers o
		INNER JOIN provider_availability p ON p.provider_id = o.provider_id
		WHERE o.request_id = $1 AND o.status = $2
	`
	rows, err := r.db.Query(ctx, query, requestID, domain.OfferStatusPending)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var offers []domain.Offer
	var providers []domain.ProviderAvailability
	for rows.Next() {
		var o domain.Offer
		var p domain.ProviderAvailability
		err := rows.Scan(
			&o.ID, &o.RequestID, &o.ProviderID, &o.Amount, &o.Message, &o.Status, &o.CreatedAt, &o.UpdatedAt,
			&p.ProviderID, &p.Available, &p.ValidationStatus, &p.City, &p.Lat, &p.Lng,
			&p.DisplayName, &p.Certified, &p.Phone, &p.UpdatedAt,
		)
		if err != nil {
			return nil, nil, err
		}
		offers = append(offers, o)
		providers = append(providers, p)
	}

	return offers, providers, rows.Err()
}

// SetRequestEta persists the assigned provider's ETA commitment. The WHERE
// clause re-validates state and assignment so a stale caller gets rows=0.
func (r *PostgresRepository) SetRequestEta(ctx context.Context, requestID, providerID uuid.UUID, etaMinutes int, etaAt time.Time) error {
	query := `
		UPDATE dispatch_requests
		SET eta_minutes = $3, eta_at = $4
		WHERE id = $1 AND provider_id = $2 AND status = $5
	`
	result, err := r.db.Exec(ctx, query, requestID, providerID, etaMinutes, etaAt, domain.RequestStatusAccepted)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return r.classifyMissionFailure(ctx, requestID, providerID)
	}
	return nil
}

// SaveLiveLocation upserts the latest-wins position for a request.
func (r *PostgresRepository) SaveLiveLocation(ctx context.Context, requestID uuid.UUID, lat, lng float64) error {
	query := `
		INSERT INTO request_locations (request_id, lat, lng, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (request_id)
		DO UPDATE SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, requestID, lat, lng)
	return err
}

// FindLiveLocation reads the latest position for a request.
func (r *PostgresRepository) FindLiveLocation(ctx context.Context, requestID uuid.UUID) (*domain.LiveLocation, error) {
	var loc domain.LiveLocation
	query := `SELECT request_id, lat, lng, updated_at FROM request_locations WHERE request_id = $1`
	err := r.db.QueryRow(ctx, query, requestID).Scan(&loc.RequestID, &loc.Lat, &loc.Lng, &loc.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// MarkPhotosRequested sets the one-way photo flag.
func (r *PostgresRepository) MarkPhotosRequested(ctx context.Context, requestID uuid.UUID) error {
	query := `UPDATE dispatch_requests SET photo_requested = true WHERE id = $1`
	result, err := r.db.Exec(ctx, query, requestID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// AppendRequestPhotos appends photo URLs to the request. Append-only.
func (r *PostgresRepository) AppendRequestPhotos(ctx context.Context, requestID uuid.UUID, urls []string) error {
	query := `UPDATE dispatch_requests SET photo_urls = photo_urls || $2 WHERE id = $1`
	result, err := r.db.Exec(ctx, query, requestID, urls)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// CompleteRequest transitions an accepted request to completed. Irreversible;
// the WHERE clause makes the transition conditional on the live state.
func (r *PostgresRepository) CompleteRequest(ctx context.Context, requestID, providerID uuid.UUID, now time.Time) error {
	query := `
		UPDATE dispatch_requests
		SET status = $3, completed_at = $4
		WHERE id = $1 AND provider_id = $2 AND status = $5
	`
	result, err := r.db.Exec(ctx, query, requestID, providerID,
		domain.RequestStatusCompleted, now, domain.RequestStatusAccepted)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return r.classifyMissionFailure(ctx, requestID, providerID)
	}
	return nil
}

// classifyMissionFailure re-reads a request after a zero-row conditional
// update to tell the caller whether it failed on existence, assignment or state.
func (r *PostgresRepository) classifyMissionFailure(ctx context.Context, requestID, providerID uuid.UUID) error {
	req, err := r.FindRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ProviderID == nil || *req.ProviderID != providerID {
		return ErrNotAssignedProvider
	}
	if req.Status != domain.RequestStatusAccepted {
		return ErrRequestNotAccepted
	}
	return ErrRequestNotFound
}

// CreateRevenueRecord appends the acceptance accounting entry.
func (r *PostgresRepository) CreateRevenueRecord(ctx context.Context, rec *domain.RevenueRecord) error {
	query := `
		INSERT INTO revenue_records (
			id, request_id, client_id, provider_id, amount,
			provider_share, company_share, provider_share_percent, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.RequestID, rec.ClientID, rec.ProviderID, rec.Amount,
		rec.ProviderShare, rec.CompanyShare, rec.ProviderSharePercent, rec.CreatedAt,
	)
	return err
}

// CreateReview stores one party's rating. The (request_id, from_user_id)
// primary key rejects a second submit without touching the first row.
func (r *PostgresRepository) CreateReview(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO dispatch_reviews (request_id, from_user_id, to_user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		review.RequestID, review.FromUserID, review.ToUserID,
		review.Rating, review.Comment, review.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReview
		}
		return err
	}
	return nil
}

// GetProviderRatings derives the aggregate rating for each provider on read.
// Providers with zero reviews are absent from the result map.
func (r *PostgresRepository) GetProviderRatings(ctx context.Context, providerIDs []uuid.UUID) (map[uuid.UUID]domain.ProviderRating, error) {
	ratings := make(map[uuid.UUID]domain.ProviderRating, len(providerIDs))
	if len(providerIDs) == 0 {
		return ratings, nil
	}

	query := `
		SELECT to_user_id, ROUND(AVG(rating)::numeric, 1), COUNT(*)
		FROM dispatch_reviews
		WHERE to_user_id = ANY($1)
		GROUP BY to_user_id
	`
	rows, err := r.db.Query(ctx, query, providerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var rating domain.ProviderRating
		if err := rows.Scan(&id, &rating.Average, &rating.Count); err != nil {
			return nil, err
		}
		ratings[id] = rating
	}

	return ratings, rows.Err()
}
