package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/botway/internal/logging"
)

// TapEvent is one activity pushed to tap subscribers.
type TapEvent struct {
	Direction      string          `json:"direction"`
	Type           string          `json:"type"`
	ActivityID     string          `json:"activityId,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`
	Activity       json.RawMessage `json:"activity"`
	At             time.Time       `json:"at"`
}

// tapClient is one connected tap subscriber.
type tapClient struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *tapClient) send(ev TapEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteJSON(ev)
}

func (c *tapClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
}

// TapHub broadcasts every activity flowing through the runtime to
// connected WebSocket subscribers. It satisfies dispatch.Tracer so it
// can sit next to the persistent activity log.
type TapHub struct {
	mu      sync.RWMutex
	clients map[string]*tapClient
	log     *logging.Logger
}

// NewTapHub creates an empty tap hub.
func NewTapHub(log *logging.Logger) *TapHub {
	return &TapHub{
		clients: make(map[string]*tapClient),
		log:     log.Sub("tap"),
	}
}

// Record broadcasts one activity to all subscribers.
func (h *TapHub) Record(_ context.Context, direction, activityType, activityID, conversationID string, body []byte) {
	ev := TapEvent{
		Direction:      direction,
		Type:           activityType,
		ActivityID:     activityID,
		ConversationID: conversationID,
		Activity:       json.RawMessage(body),
		At:             time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if err := c.send(ev); err != nil {
			h.log.Debug().Err(err).Str("connId", id).Msg("tap send failed")
		}
	}
}

// Count returns the number of connected subscribers.
func (h *TapHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *TapHub) add(c *tapClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	h.log.Info().Str("connId", c.id).Msg("tap subscriber connected")
}

func (h *TapHub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
	h.log.Info().Str("connId", id).Msg("tap subscriber disconnected")
}

// CloseAll closes all subscriber connections.
func (h *TapHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

var tapUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Same-origin or non-browser clients only.
		return r.Header.Get("Origin") == ""
	},
}

// handleTap upgrades the connection and streams activities until the
// subscriber disconnects. Subscribers pass the same bearer credentials
// as the webhook.
func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Authenticate(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := tapUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("tap upgrade failed")
		return
	}

	client := &tapClient{id: uuid.New().String(), conn: conn}
	s.tap.add(client)
	defer func() {
		s.tap.remove(client.id)
		client.close()
	}()

	// Drain the connection so pings and close frames are handled.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
