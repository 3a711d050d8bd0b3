package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/forgo/sipmate/api/internal/model"
)

// EventType represents the type of event
type EventType string

const (
	EventAuthState         EventType = "auth.state"
	EventSavedWinesChanged EventType = "saved_wines.changed"

	EventHeartbeat EventType = "heartbeat"
)

const (
	subscriberBuffer  = 100
	heartbeatInterval = 30 * time.Second
)

// Event represents a server-sent event
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// Format returns the SSE formatted string
func (e *Event) Format() string {
	data, _ := json.Marshal(e.Data)
	return "event: " + string(e.Type) + "\ndata: " + string(data) + "\n\n"
}

// Subscriber represents a connected SSE client
type Subscriber struct {
	ID     string
	UserID string
	Events chan *Event
	Done   chan struct{}
}

// EventHub fans events out to the SSE connections of each user
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscriber // userID -> subscriberID -> subscriber
	heartbeat   *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

// NewEventHub creates a new event hub
func NewEventHub() *EventHub {
	hub := &EventHub{
		subscribers: make(map[string]map[string]*Subscriber),
		done:        make(chan struct{}),
	}
	hub.heartbeat = time.NewTicker(heartbeatInterval)
	go hub.sendHeartbeats()
	return hub
}

// Subscribe adds a new subscriber for a user
func (h *EventHub) Subscribe(userID, subscriberID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:     subscriberID,
		UserID: userID,
		Events: make(chan *Event, subscriberBuffer),
		Done:   make(chan struct{}),
	}

	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[string]*Subscriber)
	}
	h.subscribers[userID][subscriberID] = sub

	return sub
}

// Unsubscribe removes a subscriber
func (h *EventHub) Unsubscribe(userID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userSubs, ok := h.subscribers[userID]; ok {
		if sub, ok := userSubs[subscriberID]; ok {
			close(sub.Done)
			close(sub.Events)
			delete(userSubs, subscriberID)
		}
		if len(userSubs) == 0 {
			delete(h.subscribers, userID)
		}
	}
}

// SendToUser sends an event to every subscriber of a user. Subscribers with a
// full buffer miss the event.
func (h *EventHub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers[userID] {
		select {
		case sub.Events <- &event:
		default:
		}
	}
}

// AuthStateListener returns a listener that forwards auth state changes to
// the user's subscribers
func (h *EventHub) AuthStateListener() AuthListener {
	return func(_ context.Context, state AuthState) {
		h.SendToUser(model.ProfileID(state.AccountID), Event{Type: EventAuthState, Data: state})
	}
}

func (h *EventHub) sendHeartbeats() {
	for {
		select {
		case <-h.heartbeat.C:
			event := &Event{
				Type: EventHeartbeat,
				Data: map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				},
			}
			h.mu.RLock()
			for _, userSubs := range h.subscribers {
				for _, sub := range userSubs {
					select {
					case sub.Events <- event:
					default:
					}
				}
			}
			h.mu.RUnlock()
		case <-h.done:
			return
		}
	}
}

// Close stops the event hub and disconnects every subscriber
func (h *EventHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.heartbeat.Stop()

		h.mu.Lock()
		defer h.mu.Unlock()

		for userID, userSubs := range h.subscribers {
			for _, sub := range userSubs {
				close(sub.Done)
				close(sub.Events)
			}
			delete(h.subscribers, userID)
		}
	})
}

// SubscriberCount returns the number of subscribers for a user
func (h *EventHub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}
