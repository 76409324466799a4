/**
 * @description
 * This file defines the change-notification events the service publishes to
 * the message broker on every mutating dispatch operation, along with their
 * topic routing keys.
 *
 * @notes
 * - Consumers match on the `dispatch.*` routing keys; the payload is the same
 *   DispatchEvent shape for every key, with optional fields left empty when
 *   they do not apply (e.g. no provider on request creation).
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for change notifications published on every mutating dispatch
// operation. The live portal UI subscribes to these instead of polling.
const (
	EventRequestCreated   = "dispatch.request.created"
	EventRequestExpired   = "dispatch.request.expired"
	EventOfferSubmitted   = "dispatch.offer.submitted"
	EventOfferAccepted    = "dispatch.offer.accepted"
	EventMissionEta       = "dispatch.mission.eta"
	EventMissionCompleted = "dispatch.mission.completed"
)

// DispatchEvent is the payload published to the events exchange. RequestID is
// the correlation token subscribers key on.
type DispatchEvent struct {
	RequestID  uuid.UUID  `json:"request_id"`
	ClientID   uuid.UUID  `json:"client_id"`
	ProviderID *uuid.UUID `json:"provider_id,omitempty"`
	OfferID    *uuid.UUID `json:"offer_id,omitempty"`
	Status     string     `json:"status,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
