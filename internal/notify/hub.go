package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"peerprep/interview/internal/models"
)

const writeTimeout = 5 * time.Second

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Hub keeps one websocket per user and pushes pairing updates to it.
type Hub struct {
	upgrader    websocket.Upgrader
	mu          sync.Mutex
	connections map[string]*client
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		connections: make(map[string]*client),
		logger:      logger,
	}
}

// Serve upgrades the request and holds the connection until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("userId", userID), zap.Error(err))
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	if old, ok := h.connections[userID]; ok {
		old.conn.Close()
	}
	h.connections[userID] = c
	h.mu.Unlock()
	h.logger.Info("websocket connected", zap.String("userId", userID))

	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	h.mu.Lock()
	if h.connections[userID] == c {
		delete(h.connections, userID)
	}
	h.mu.Unlock()
	conn.Close()
	h.logger.Info("websocket disconnected", zap.String("userId", userID))
}

func (h *Hub) connected(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.connections[userID]
	return ok
}

// SendToUser writes data to the user's socket, dropping the socket on failure.
func (h *Hub) SendToUser(userID string, data any) {
	h.mu.Lock()
	c, ok := h.connections[userID]
	h.mu.Unlock()
	if !ok {
		return
	}

	if err := c.writeJSON(data); err != nil {
		h.logger.Warn("failed to notify user", zap.String("userId", userID), zap.Error(err))
		h.mu.Lock()
		if h.connections[userID] == c {
			delete(h.connections, userID)
		}
		h.mu.Unlock()
		c.conn.Close()
	}
}

func (h *Hub) HandleEvent(_ context.Context, event models.Event) {
	switch event.Type {
	case models.EventPaired:
		h.SendToUser(event.AskerID, pairedFrame(event, event.RespondentID))
		h.SendToUser(event.RespondentID, pairedFrame(event, event.AskerID))
	case models.EventFinished:
		h.SendToUser(event.RespondentID, map[string]any{
			"type":    "session_finished",
			"roomId":  event.RoomID,
			"pairId":  event.PairID,
			"message": "Your interviewer has ended the session",
		})
	}
}

func pairedFrame(event models.Event, peerID string) map[string]any {
	return map[string]any{
		"type":   "paired",
		"roomId": event.RoomID,
		"pairId": event.PairID,
		"peerId": peerID,
	}
}

// Close drops every open socket.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, c := range h.connections {
		c.conn.Close()
		delete(h.connections, userID)
	}
}
