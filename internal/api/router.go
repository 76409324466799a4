/**
 * @description
 * This file sets up the HTTP router for the dispatch-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the mobile and web clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DispatchRoutes creates and returns a new router for the dispatch service.
func DispatchRoutes(h *DispatchHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		// Request lifecycle
		r.Post("/requests", h.CreateRequestHandler)
		r.Get("/requests/{requestID}/offers", h.ListOffersHandler)
		r.Post("/requests/{requestID}/offers", h.SubmitOfferHandler)
		r.Post("/requests/{requestID}/offers/{offerID}/accept", h.AcceptOfferHandler)

		// Mission tracking
		r.Put("/requests/{requestID}/eta", h.SetEtaHandler)
		r.Post("/requests/{requestID}/location", h.PingLocationHandler)
		r.Get("/requests/{requestID}/location", h.LiveLocationHandler)
		r.Post("/requests/{requestID}/photos/request", h.RequestPhotosHandler)
		r.Post("/requests/{requestID}/photos", h.SubmitPhotosHandler)
		r.Post("/requests/{requestID}/complete", h.CompleteMissionHandler)

		// Reviews
		r.Post("/requests/{requestID}/reviews", h.SubmitReviewHandler)

		// Provider availability
		r.Put("/providers/availability", h.UpdateAvailabilityHandler)
	})

	return r
}
