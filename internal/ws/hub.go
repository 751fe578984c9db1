// Package ws fans notifications out to WebSocket subscribers. Rooms
// mirror the API's scopes: every connection sits in its own user room,
// and clients join event rooms explicitly after connecting.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"community_capital/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients connect from app origins; auth happens via JWT, not
	// origin checks.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks connected clients and their room memberships.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{})}
}

// Run consumes notifications until the context is canceled. Delivery is
// best effort; a slow client loses messages rather than blocking the hub.
func (h *Hub) Run(ctx context.Context, messages <-chan notify.Message) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			h.broadcast(msg)
		case <-ctx.Done():
			return
		}
	}
}

// broadcast routes a message: user-directed messages go to that user's
// room only, everything else to the event room.
func (h *Hub) broadcast(msg notify.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("failed to encode notification", "error", err)
		return
	}

	room := fmt.Sprintf("event:%d", msg.EventID)
	if msg.UserID != 0 {
		room = fmt.Sprintf("user:%d", msg.UserID)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			slog.Debug("dropping message for slow websocket client", "room", room)
		}
	}
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.joined[room] = struct{}{}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.joined {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uint
	send   chan []byte
	joined map[string]struct{}
}

// clientCommand is what clients send upstream; joinEvent is the only
// supported command.
type clientCommand struct {
	Type    string `json:"type"`
	EventID uint   `json:"eventId"`
}

// Serve upgrades the request and pumps messages until either side closes.
// The caller must have authenticated the user already.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
		joined: make(map[string]struct{}),
	}
	h.join(c, fmt.Sprintf("user:%d", userID))
	slog.Info("websocket connected", "user_id", userID)

	go c.writePump()
	go c.readPump()
	return nil
}

func (c *client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
		close(c.send)
		slog.Info("websocket disconnected", "user_id", c.userID)
	}()

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		if cmd.Type == "joinEvent" && cmd.EventID != 0 {
			c.hub.join(c, fmt.Sprintf("event:%d", cmd.EventID))
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
