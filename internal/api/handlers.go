/**
 * @description
 * This file contains the HTTP handlers for the dispatch core: request
 * creation, offer listing and submission, the acceptance step, and provider
 * availability. Handlers decode and sanity-check the payload, delegate to the
 * app service, and translate service errors to the HTTP error taxonomy.
 *
 * Key features:
 * - Centralized error translation in `writeDispatchError`, keyed on the
 *   service and store sentinel errors.
 * - All user identification comes from the verified JWT context, never the
 *   request body.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Application layers.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/allobrico/dispatch-service/internal/app"
	"github.com/allobrico/dispatch-service/internal/domain"
	"github.com/allobrico/dispatch-service/internal/store"
)

// DispatchHandlers holds the application service that handlers will use.
type DispatchHandlers struct {
	service *app.Service
}

// NewDispatchHandlers creates a new instance of DispatchHandlers.
func NewDispatchHandlers(service *app.Service) *DispatchHandlers {
	return &DispatchHandlers{service: service}
}

// CreateRequestHandler handles POST /requests.
func (h *DispatchHandlers) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var payload domain.CreateRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.CreateRequest(r.Context(), userID, payload)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_request outcome=reject client_id=%s err=%v", userID, err)
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// ListOffersHandler handles GET /requests/{requestID}/offers.
func (h *DispatchHandlers) ListOffersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	offers, err := h.service.ListOffers(r.Context(), requestID, userID)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"offers": offers})
}

// SubmitOfferHandler handles POST /requests/{requestID}/offers.
func (h *DispatchHandlers) SubmitOfferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	var payload domain.SubmitOfferPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	offer, err := h.service.SubmitOffer(r.Context(), requestID, userID, payload)
	if err != nil {
		log.Printf("level=warn component=api endpoint=submit_offer outcome=reject request_id=%s provider_id=%s err=%v", requestID, userID, err)
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, offer)
}

// AcceptOfferHandler handles POST /requests/{requestID}/offers/{offerID}/accept.
func (h *DispatchHandlers) AcceptOfferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}
	offerID, err := uuid.Parse(chi.URLParam(r, "offerID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offer ID")
		return
	}

	result, err := h.service.AcceptOffer(r.Context(), requestID, offerID, userID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=accept_offer outcome=reject request_id=%s offer_id=%s client_id=%s err=%v", requestID, offerID, userID, err)
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// UpdateAvailabilityHandler handles PUT /providers/availability.
func (h *DispatchHandlers) UpdateAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var payload domain.AvailabilityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateAvailability(r.Context(), userID, payload); err != nil {
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// writeDispatchError translates service and store sentinel errors to the HTTP
// error taxonomy. Anything unmatched is a 500 with a generic body; details go
// to the log, not the client.
func (h *DispatchHandlers) writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrRequestNotFound),
		errors.Is(err, store.ErrOfferNotFound),
		errors.Is(err, store.ErrClientNotFound),
		errors.Is(err, store.ErrProviderNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, store.ErrNotRequestOwner),
		errors.Is(err, store.ErrNotAssignedProvider),
		errors.Is(err, app.ErrNotParticipant),
		errors.Is(err, app.ErrNotCounterpart):
		h.writeError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, store.ErrRequestExpired):
		h.writeError(w, http.StatusGone, err.Error())

	case errors.Is(err, store.ErrDuplicateOffer),
		errors.Is(err, store.ErrDuplicateReview):
		h.writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, store.ErrRequestNotPending),
		errors.Is(err, store.ErrRequestNotAccepted),
		errors.Is(err, store.ErrOfferNotPending),
		errors.Is(err, store.ErrOfferMismatch),
		errors.Is(err, app.ErrRequestNotCompleted),
		errors.Is(err, app.ErrPhotosNotRequested):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, app.ErrRateLimited):
		var limited *app.RateLimitedError
		if errors.As(err, &limited) && limited.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
		}
		h.writeError(w, http.StatusTooManyRequests, err.Error())

	case isTransientFault(err):
		h.writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")

	case errors.Is(err, app.ErrEmptyAddress),
		errors.Is(err, app.ErrEmptyDescription),
		errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidEta),
		errors.Is(err, app.ErrInvalidRating),
		errors.Is(err, app.ErrNoPhotoURLs):
		h.writeError(w, http.StatusBadRequest, err.Error())

	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// isTransientFault reports whether an error is a retryable infrastructure
// fault rather than a dispatch outcome: timeouts, dropped connections, and
// driver errors pgx marks safe to retry. These map to 503 with a retry hint.
func isTransientFault(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// writeJSON is a helper for writing JSON responses.
func (h *DispatchHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *DispatchHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
