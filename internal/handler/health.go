package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health
type HealthHandler struct {
	db      Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler that pings db
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		slog.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
		w.Header().Set("Retry-After", "5")
		WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "down", Database: "down"})
		return
	}

	WriteJSON(w, http.StatusOK, HealthResponse{Status: "up", Database: "up"})
}
