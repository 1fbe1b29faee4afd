// Package rest exposes the read-mostly management API: pipeline stats,
// circuit breaker states, and manual requeue/forget operations.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/internal/resilience"
	"github.com/drossen/ticketsmith/internal/track"
)

// Handler handles management API requests.
type Handler struct {
	tracker  *track.Tracker
	breakers *resilience.Manager
	logger   *zap.Logger
}

// NewHandler creates a new REST handler.
func NewHandler(tracker *track.Tracker, breakers *resilience.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		tracker:  tracker,
		breakers: breakers,
		logger:   logger,
	}
}

// Routes mounts the management endpoints on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", h.GetStats)
		r.Get("/circuits", h.GetCircuits)
		r.Get("/tickets/{id}", h.GetTicket)
		r.Post("/tickets/{id}/requeue", h.RequeueTicket)
		r.Delete("/tickets/{id}", h.ForgetTicket)
	})
	return r
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStats handles GET /api/v1/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Stats())
}

// GetCircuits handles GET /api/v1/circuits.
func (h *Handler) GetCircuits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.breakers.Snapshot())
}

// GetTicket handles GET /api/v1/tickets/{id}.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := h.tracker.Get(id)
	if !ok {
		http.Error(w, "unknown ticket", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RequeueTicket handles POST /api/v1/tickets/{id}/requeue. The ticket
// is reset to be picked up on the next cycle regardless of its state.
func (h *Handler) RequeueTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.tracker.Get(id); !ok {
		http.Error(w, "unknown ticket", http.StatusNotFound)
		return
	}
	if err := h.tracker.Requeue(r.Context(), id); err != nil {
		h.logger.Error("failed to requeue ticket",
			zap.String("ticket_id", id),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"ticket_id": id,
		"status":    "requeued",
	})
}

// ForgetTicket handles DELETE /api/v1/tickets/{id}. The record is
// dropped entirely; if the ticket still matches the poll query it will
// be treated as brand new on the next cycle.
func (h *Handler) ForgetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.tracker.Get(id); !ok {
		http.Error(w, "unknown ticket", http.StatusNotFound)
		return
	}
	if err := h.tracker.Forget(r.Context(), id); err != nil {
		h.logger.Error("failed to forget ticket",
			zap.String("ticket_id", id),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
