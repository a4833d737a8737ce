// Package ws exposes the live batch progress feed over websockets. The feed
// is best-effort: slow subscribers are dropped rather than back-pressuring
// the delivery workers.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/eraycetinay/mailblast/internal/events"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	clientSendBuffer = 256
	writeDeadline    = 10 * time.Second
	pongWait         = 60 * time.Second
	pingInterval     = 30 * time.Second
)

var _ events.Publisher = (*Hub)(nil)

// Hub manages websocket subscribers and broadcasts progress events to all of
// them.
type Hub struct {
	clients    map[*client]struct{}
	mu         sync.RWMutex
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	logger     *zap.Logger
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, clientSendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger,
	}
}

// Run drives the hub's event loop until the process exits. Call it in its
// own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("progress subscriber connected", zap.Int("totalClients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("progress subscriber disconnected", zap.Int("totalClients", total))

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow subscriber; drop it.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (h *Hub) PublishProgress(event events.Progress) {
	h.publish(envelope{Type: "batch_progress", Data: event})
}

func (h *Hub) PublishCompletion(event events.Completion) {
	h.publish(envelope{Type: "batch_completed", Data: event})
}

func (h *Hub) publish(e envelope) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("failed to marshal progress event", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("progress broadcast channel full, dropping event")
	}
}

// HandleWebSocket upgrades the HTTP connection and registers the subscriber.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
