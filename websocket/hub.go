package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HSouheill/referral_backend/models"
)

const (
	MessageTypeConnected    = "connected"
	MessageTypeNotification = "notification"

	writeWait = 10 * time.Second
)

// ErrNotConnected is returned by Publish when the user has no open dashboard.
var ErrNotConnected = errors.New("user not connected")

// Message is the envelope written to dashboard sockets.
type Message struct {
	Type         string               `json:"type"`
	Message      string               `json:"message,omitempty"`
	UserID       string               `json:"userId,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// Client is one dashboard connection. A user may have several.
type Client struct {
	UserID string
	Conn   *websocket.Conn

	writeMu sync.Mutex
}

// WriteJSON serialises writes; gorilla connections allow one writer at a time.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

// Hub tracks the open dashboard connections by user id.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Close stops Run and closes every open connection.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Conn.Close()
	}
}

// Run owns registration until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]bool)
				h.clients[client.UserID] = conns
			}
			conns[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.UserID]; ok {
				delete(conns, client)
				if len(conns) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()
			client.Conn.Close()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for client := range conns {
			client.Conn.Close()
		}
		delete(h.clients, userID)
	}
}

// Connected reports how many dashboards userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish sends n to every open dashboard of userID.
func (h *Hub) Publish(userID string, n *models.Notification) error {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return ErrNotConnected
	}

	msg := Message{Type: MessageTypeNotification, UserID: userID, Notification: n}
	var errs []error
	for _, client := range targets {
		if err := client.WriteJSON(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
