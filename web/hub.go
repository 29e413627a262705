package web

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message types pushed to dashboard clients
const (
	MessageTypeStatus   = "status"
	MessageTypeReplay   = "replay"
	MessageTypeSettings = "settings"
	MessageTypeCapture  = "capture"
)

// Message is the envelope for every websocket push
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StatusMessage reports whether a replay is in flight
type StatusMessage struct {
	Status  string `json:"status"`
	Dropped int64  `json:"dropped"`
}

// ReplayMessage summarizes a finished replay
type ReplayMessage struct {
	ID        int64  `json:"id,omitempty"`
	SessionID string `json:"sessionId"`
	Outcome   string `json:"outcome"`
	OpenChat  string `json:"openChat"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Hub fans messages out to every connected client
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until Close is called
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			slog.Debug("Dashboard client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				slog.Debug("Dashboard client disconnected", "clients", len(h.clients))
			}

		case payload := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Slow client, drop it
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Close stops Run and disconnects all clients
func (h *Hub) Close() {
	close(h.done)
}

// BroadcastMessage queues msg for every client. Messages are dropped when the queue is full.
func (h *Hub) BroadcastMessage(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode broadcast", "type", msg.Type, "error", err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		slog.Warn("Broadcast queue full, dropping message", "type", msg.Type)
	}
}

// Client is one websocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("WebSocket read error", "error", err)
			}
			return
		}
	}
}

// writePump is the only writer on the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
