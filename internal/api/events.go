package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pathlearn/roadmap-engine/internal/completion"
	"github.com/pathlearn/roadmap-engine/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventMessage is the wire envelope for the events stream
type EventMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type eventSubscriber struct {
	conn   *websocket.Conn
	userID string // empty means receive events for all users
	send   chan EventMessage
}

// EventHub fans progress and milestone events out to websocket subscribers
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[*eventSubscriber]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[*eventSubscriber]struct{}),
	}
}

func (h *EventHub) register(sub *eventSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub] = struct{}{}
}

func (h *EventHub) unregister(sub *eventSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

// broadcast delivers msg to every subscriber interested in userID.
// Slow subscribers are dropped rather than allowed to block the caller.
func (h *EventHub) broadcast(userID string, msg EventMessage) {
	h.mu.RLock()
	var stale []*eventSubscriber
	for sub := range h.subscribers {
		if sub.userID != "" && sub.userID != userID {
			continue
		}
		select {
		case sub.send <- msg:
		default:
			stale = append(stale, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range stale {
		slog.Warn("dropping slow event subscriber", "user_filter", sub.userID)
		h.unregister(sub)
	}
}

// BroadcastProgress publishes a derived-view update to subscribers
func (h *EventHub) BroadcastProgress(update completion.ViewUpdate) {
	h.broadcast(update.UserID, EventMessage{
		Type: "progress",
		Data: update,
	})
}

// BroadcastMilestone publishes a milestone crossing to subscribers
func (h *EventHub) BroadcastMilestone(event models.MilestoneEvent) {
	h.broadcast(event.UserID, EventMessage{
		Type: "milestone",
		Data: event,
	})
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	sub := &eventSubscriber{
		conn:   conn,
		userID: userID,
		send:   make(chan EventMessage, 32),
	}
	s.events.register(sub)
	defer s.events.unregister(sub)

	slog.Info("events websocket connected", "user_filter", userID)

	if err := sendEventMessage(conn, EventMessage{
		Type: "connected",
		Data: map[string]string{"message": "subscribed to progress events"},
	}); err != nil {
		return
	}

	done := make(chan struct{})

	// Read loop: the client sends nothing meaningful, but reading is how
	// we notice the connection closing
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			slog.Info("events websocket disconnected", "user_filter", userID)
			return
		case msg, ok := <-sub.send:
			if !ok {
				return
			}
			if err := sendEventMessage(conn, msg); err != nil {
				return
			}
		}
	}
}

func sendEventMessage(conn *websocket.Conn, msg EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal event message", "error", err)
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send event message", "error", err)
		return err
	}
	return nil
}
