package handler

import (
	"fmt"
	"net/http"

	"github.com/forgo/sipmate/api/internal/middleware"
	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/internal/service"
	"github.com/google/uuid"
)

// EventStream is the per-user event fan-out
type EventStream interface {
	Subscribe(userID, subscriberID string) *service.Subscriber
	Unsubscribe(userID, subscriberID string)
}

// EventsHandler handles SSE event streaming
type EventsHandler struct {
	eventHub EventStream
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(eventHub EventStream) *EventsHandler {
	return &EventsHandler{
		eventHub: eventHub,
	}
}

// RegisterRoutes registers the event stream behind protect
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux, protect middleware.Middleware) {
	mux.Handle("GET /v1/events/stream", protect(http.HandlerFunc(h.Stream)))
}

// Stream handles GET /v1/events/stream
// It streams auth.state and saved_wines.changed events for the caller
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, model.NewInternalError("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	subscriberID := uuid.New().String()
	sub := h.eventHub.Subscribe(userID, subscriberID)
	defer h.eventHub.Unsubscribe(userID, subscriberID)

	fmt.Fprintf(w, "event: connected\ndata: {\"subscriber_id\":\"%s\"}\n\n", subscriberID)
	flusher.Flush()

	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			fmt.Fprint(w, event.Format())
			flusher.Flush()

		case <-sub.Done:
			return

		case <-r.Context().Done():
			// Client disconnected
			return
		}
	}
}
