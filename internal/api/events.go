package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/prepstack/pack-engine/internal/activation"
	"github.com/prepstack/pack-engine/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventMessage is the wire format of the activation event feed
type EventMessage struct {
	Type  string                  `json:"type"`
	Event *models.ActivationEvent `json:"event,omitempty"`
	Data  string                  `json:"data,omitempty"`
}

// EventHub fans activation events out to websocket subscribers. It is the
// delivery channel behind the activation notification hook; a slow or broken
// subscriber is dropped, never blocking an activation.
type EventHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewEventHub creates an empty hub
func NewEventHub() *EventHub {
	return &EventHub{conns: make(map[*websocket.Conn]bool)}
}

// Hook returns an activation hook that broadcasts to all subscribers
func (h *EventHub) Hook() activation.Hook {
	return func(ctx context.Context, event models.ActivationEvent) error {
		h.Broadcast(event)
		return nil
	}
}

// Broadcast sends an activation event to every connected subscriber
func (h *EventHub) Broadcast(event models.ActivationEvent) {
	data, err := json.Marshal(EventMessage{Type: "pack_activated", Event: &event})
	if err != nil {
		slog.Error("failed to marshal activation event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("dropping event subscriber", "error", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *EventHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

func (h *EventHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Subscribers returns the current subscriber count
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// handleEventsWS upgrades the connection and streams activation events until
// the client disconnects. The feed is one-way; inbound messages are ignored.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	s.events.register(conn)
	defer s.events.unregister(conn)

	slog.Info("event subscriber connected", "remote_addr", r.RemoteAddr)

	greeting, _ := json.Marshal(EventMessage{Type: "connected", Data: "subscribed to activation events"})
	if err := conn.WriteMessage(websocket.TextMessage, greeting); err != nil {
		return
	}

	// Read loop exists only to notice the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("event subscriber read error", "error", err)
			}
			break
		}
	}

	slog.Info("event subscriber disconnected", "remote_addr", r.RemoteAddr)
}
