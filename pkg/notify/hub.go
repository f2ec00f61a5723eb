package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// Hub is a registry of WebSocket connections keyed by user id.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
	log   zerolog.Logger
}

type client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

var _ Notifier = (*Hub)(nil)

// NewHub 创建连接注册表
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]map[*client]struct{}),
		log:   log.With().Str("component", "ws-hub").Logger(),
	}
}

// Register attaches conn to userID and serves it until the peer goes away or
// ctx is cancelled. It blocks.
func (h *Hub) Register(ctx context.Context, userID string, conn *websocket.Conn) {
	c := &client{hub: h, userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Str("user_id", userID).Msg("websocket registered")

	done := make(chan struct{})
	go func() {
		c.writePump(ctx)
		close(done)
	}()
	c.readPump()
	c.close()
	<-done
}

// BroadcastToUser queues payload on every connection of userID. Connections
// whose buffer is full are dropped.
func (h *Hub) BroadcastToUser(_ context.Context, userID, event string, payload interface{}) {
	frame, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.conns[userID] {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("user_id", userID).Msg("dropping slow websocket")
		c.close()
	}
}

// Connections reports how many live connections userID has.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.userID)
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		c.conn.Close()
	})
}

// readPump discards client frames; it only exists to process pongs and
// notice disconnects.
func (c *client) readPump() {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-ctx.Done():
			c.close()
			return
		}
	}
}
