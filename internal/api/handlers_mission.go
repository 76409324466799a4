/**
 * @description
 * HTTP handlers for the mission-tracking surface of an accepted request: the
 * provider's ETA commitment, live-position pings and reads, the photo
 * exchange, completion, and post-completion reviews.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/allobrico/dispatch-service/internal/domain"
)

// SetEtaHandler handles PUT /requests/{requestID}/eta.
func (h *DispatchHandlers) SetEtaHandler(w http.ResponseWriter, r *http.Request) {
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

	var payload domain.SetEtaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.SetEta(r.Context(), requestID, userID, payload)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// PingLocationHandler handles POST /requests/{requestID}/location.
func (h *DispatchHandlers) PingLocationHandler(w http.ResponseWriter, r *http.Request) {
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

	var payload domain.PingLocationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.PingLocation(r.Context(), requestID, userID, payload); err != nil {
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// LiveLocationHandler handles GET /requests/{requestID}/location.
func (h *DispatchHandlers) LiveLocationHandler(w http.ResponseWriter, r *http.Request) {
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

	location, err := h.service.LiveLocation(r.Context(), requestID, userID)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, location)
}

// RequestPhotosHandler handles POST /requests/{requestID}/photos/request.
func (h *DispatchHandlers) RequestPhotosHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.RequestPhotos(r.Context(), requestID, userID); err != nil {
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "photos_requested"})
}

// SubmitPhotosHandler handles POST /requests/{requestID}/photos.
func (h *DispatchHandlers) SubmitPhotosHandler(w http.ResponseWriter, r *http.Request) {
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

	var payload domain.SubmitPhotosPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SubmitPhotos(r.Context(), requestID, userID, payload); err != nil {
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "photos_added"})
}

// CompleteMissionHandler handles POST /requests/{requestID}/complete.
func (h *DispatchHandlers) CompleteMissionHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.CompleteMission(r.Context(), requestID, userID); err != nil {
		log.Printf("level=warn component=api endpoint=complete_mission outcome=reject request_id=%s provider_id=%s err=%v", requestID, userID, err)
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// SubmitReviewHandler handles POST /requests/{requestID}/reviews.
func (h *DispatchHandlers) SubmitReviewHandler(w http.ResponseWriter, r *http.Request) {
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

	var payload domain.SubmitReviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	review, err := h.service.SubmitReview(r.Context(), requestID, userID, payload)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, review)
}
