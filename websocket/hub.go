package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventSubmissionCreated = "submission.created"
	EventResultsToggled    = "results.toggled"
)

// writeWait bounds each write so one stalled client cannot hold up delivery
// to the others.
const writeWait = 10 * time.Second

// Event is pushed to every open connection of each recipient.
type Event struct {
	Type         string      `json:"type"`
	Payload      interface{} `json:"payload"`
	RecipientIDs []uuid.UUID `json:"-"`
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[Conn]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}
	stopOnce   sync.Once
}

var Default = NewHub(256)

func NewHub(buffer int) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[Conn]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, buffer),
		done:       make(chan struct{}),
	}
}

// Register adds the client's connection. Once the hub has stopped the
// connection is closed instead.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Conn.Close()
	}
}

// Unregister never blocks after the hub has stopped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event without blocking. It reports false when the queue
// is full and the event was dropped.
func (h *Hub) Publish(e Event) bool {
	if len(e.RecipientIDs) == 0 {
		return true
	}
	select {
	case h.broadcast <- e:
		return true
	default:
		log.Printf("⚠️ Realtime queue full, dropping %s event", e.Type)
		return false
	}
}

// Connected reports how many open connections a user has.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.stopOnce.Do(func() { close(h.done) })
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[Conn]struct{})
				h.clients[client.UserID] = conns
			}
			conns[client.Conn] = struct{}{}
			h.mu.Unlock()
			log.Printf("Client registered: %s", client.UserID)
		case client := <-h.unregister:
			h.remove(client.UserID, client.Conn)
			log.Printf("Client unregistered: %s", client.UserID)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event Event) {
	type target struct {
		userID uuid.UUID
		conn   Conn
	}
	var targets []target
	h.mu.RLock()
	for _, userID := range event.RecipientIDs {
		for conn := range h.clients[userID] {
			targets = append(targets, target{userID, conn})
		}
	}
	h.mu.RUnlock()

	for _, t := range targets {
		if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Printf("Error setting write deadline for client %s: %v", t.userID, err)
		}
		if err := t.conn.WriteJSON(event); err != nil {
			log.Printf("Error sending %s to client %s: %v", event.Type, t.userID, err)
			t.conn.Close()
			h.remove(t.userID, t.conn)
		}
	}
}

func (h *Hub) remove(userID uuid.UUID, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for conn := range conns {
			conn.Close()
		}
		delete(h.clients, userID)
	}
}
