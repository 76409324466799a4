/**
 * @description
 * This file defines the core domain models for the dispatch-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (centimes),
 *   which avoids floating-point inaccuracies with money.
 * - A Request is never deleted; terminal states (expired, cancelled, completed)
 *   are retained as history.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Request lifecycle states. Transitions only move forward:
// pending -> accepted -> completed, with pending -> expired and
// pending -> cancelled as terminal alternates.
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusCompleted = "completed"
	RequestStatusExpired   = "expired"
	RequestStatusCancelled = "cancelled"
)

// Offer states. An offer only leaves `pending` as a side effect of the
// client's accept on the parent request.
const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusRejected = "rejected"
)

// ProviderValidated is the only validation status that keeps a provider
// eligible once a status has been recorded at all.
const ProviderValidated = "validated"

// Request represents a client's instant-service ask. It maps directly to the
// `dispatch_requests` table.
type Request struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ClientID       uuid.UUID  `json:"client_id" db:"client_id"`
	Address        string     `json:"address" db:"address"`
	Description    string     `json:"description" db:"description"`
	ProposedAmount *int64     `json:"proposed_amount,omitempty" db:"proposed_amount"` // centimes
	ServiceID      *uuid.UUID `json:"service_id,omitempty" db:"service_id"`
	City           *string    `json:"city,omitempty" db:"city"`
	Status         string     `json:"status" db:"status"`
	ProviderID     *uuid.UUID `json:"provider_id,omitempty" db:"provider_id"`
	EtaMinutes     *int       `json:"eta_minutes,omitempty" db:"eta_minutes"`
	EtaAt          *time.Time `json:"eta_at,omitempty" db:"eta_at"`
	PhotoRequested bool       `json:"photo_requested" db:"photo_requested"`
	PhotoURLs      []string   `json:"photo_urls,omitempty" db:"photo_urls"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Expired reports whether the request's offer window has elapsed at `now`.
// Expiration is checked lazily; a pending request past its window is treated
// as expired by every reader even before the sweeper marks it.
func (r *Request) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Offer represents a provider's bid on a Request. It maps to `dispatch_offers`.
// UNIQUE (request_id, provider_id) guarantees at most one offer per pair.
type Offer struct {
	ID         uuid.UUID `json:"id" db:"id"`
	RequestID  uuid.UUID `json:"request_id" db:"request_id"`
	ProviderID uuid.UUID `json:"provider_id" db:"provider_id"`
	Amount     int64     `json:"amount" db:"amount"` // centimes
	Message    *string   `json:"message,omitempty" db:"message"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ProviderAvailability is the mutable flag set owned by a provider. Written
// only by the provider itself or an admin validation step; read by the
// eligibility filter and the mission tracker.
type ProviderAvailability struct {
	ProviderID       uuid.UUID `json:"provider_id" db:"provider_id"`
	Available        bool      `json:"available" db:"available"`
	ValidationStatus *string   `json:"validation_status,omitempty" db:"validation_status"`
	City             *string   `json:"city,omitempty" db:"city"`
	Lat              *float64  `json:"lat,omitempty" db:"lat"`
	Lng              *float64  `json:"lng,omitempty" db:"lng"`
	DisplayName      string    `json:"display_name" db:"display_name"`
	Certified        bool      `json:"certified" db:"certified"`
	Phone            string    `json:"phone" db:"phone"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Eligible reports whether the provider passes the availability and
// validation checks. A provider with no validation status at all is treated
// as eligible (permissive default for legacy records).
func (p *ProviderAvailability) Eligible() bool {
	if !p.Available {
		return false
	}
	return p.ValidationStatus == nil || *p.ValidationStatus == ProviderValidated
}

// RevenueRecord is the append-only accounting entry created exactly once when
// a request is accepted. Consumed downstream by billing.
type RevenueRecord struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	RequestID            uuid.UUID `json:"request_id" db:"request_id"`
	ClientID             uuid.UUID `json:"client_id" db:"client_id"`
	ProviderID           uuid.UUID `json:"provider_id" db:"provider_id"`
	Amount               int64     `json:"amount" db:"amount"`
	ProviderShare        int64     `json:"provider_share" db:"provider_share"`
	CompanyShare         int64     `json:"company_share" db:"company_share"`
	ProviderSharePercent int       `json:"provider_share_percent" db:"provider_share_percent"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// Review is a single post-completion rating. (request_id, from_user_id) is
// the primary key, so a party can review a mission at most once.
type Review struct {
	RequestID  uuid.UUID `json:"request_id" db:"request_id"`
	FromUserID uuid.UUID `json:"from_user_id" db:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id" db:"to_user_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ProviderRating is the on-read aggregate over a provider's received reviews.
type ProviderRating struct {
	Average float64 `json:"average"` // rounded to one decimal
	Count   int     `json:"count"`
}

// Client is the read-only view of a client profile the dispatch core needs.
// The saved city takes precedence over geocoding the request address.
type Client struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	City        *string   `json:"city,omitempty" db:"city"`
	Phone       string    `json:"phone" db:"phone"`
}

// LiveLocation is the latest-wins position of the assigned provider during an
// accepted mission. No history is retained.
type LiveLocation struct {
	RequestID uuid.UUID `json:"request_id" db:"request_id"`
	Lat       float64   `json:"lat" db:"lat"`
	Lng       float64   `json:"lng" db:"lng"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateRequestPayload is the DTO for incoming request-creation API calls.
type CreateRequestPayload struct {
	Address        string     `json:"address"`
	Description    string     `json:"description"`
	ProposedAmount *int64     `json:"proposed_amount,omitempty"` // centimes
	ServiceID      *uuid.UUID `json:"service_id,omitempty"`
}

// CreateRequestResult is returned to the client after a request is created.
type CreateRequestResult struct {
	RequestID uuid.UUID `json:"request_id"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmitOfferPayload is the DTO for a provider's bid.
type SubmitOfferPayload struct {
	Amount  int64   `json:"amount"` // centimes
	Message *string `json:"message,omitempty"`
}

// OfferView is a pending offer enriched with provider display data for the
// owning client. Offers are a set, not a ranked list; no ordering is implied.
type OfferView struct {
	OfferID      uuid.UUID       `json:"offer_id"`
	ProviderID   uuid.UUID       `json:"provider_id"`
	Amount       int64           `json:"amount"`
	Message      *string         `json:"message,omitempty"`
	ProviderName string          `json:"provider_name"`
	Certified    bool            `json:"certified"`
	Rating       *ProviderRating `json:"rating,omitempty"` // absent when zero reviews
	CreatedAt    time.Time       `json:"created_at"`
}

// AcceptOfferResult summarizes a successful acceptance transaction.
type AcceptOfferResult struct {
	RequestID  uuid.UUID `json:"request_id"`
	OfferID    uuid.UUID `json:"offer_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Amount     int64     `json:"amount"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// SetEtaPayload is the DTO for the assigned provider's ETA commitment.
type SetEtaPayload struct {
	EtaMinutes int `json:"eta_minutes"`
}

// PingLocationPayload carries one live-position sample from the assigned provider.
type PingLocationPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SubmitPhotosPayload appends photo URLs to a request after the provider asked
// for them.
type SubmitPhotosPayload struct {
	PhotoURLs []string `json:"photo_urls"`
}

// SubmitReviewPayload is the DTO for a post-completion rating.
type SubmitReviewPayload struct {
	ToUserID uuid.UUID `json:"to_user_id"`
	Rating   int       `json:"rating"`
	Comment  *string   `json:"comment,omitempty"`
}

// AvailabilityPayload lets a provider update its own availability record.
type AvailabilityPayload struct {
	Available bool     `json:"available"`
	City      *string  `json:"city,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}
