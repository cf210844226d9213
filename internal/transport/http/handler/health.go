package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether the record store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler { return &HealthHandler{store: store} }

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		if h.store == nil {
			writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.store.PingContext(ctx); err != nil {
			slog.WarnContext(r.Context(), "record store not reachable", "error", err)
			writeError(w, http.StatusServiceUnavailable, KindStorage, "record store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, KindValidation, "unknown action")
	}
}
