// Package ws bridges the event bus to WebSocket clients.
package ws

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/events"
)

// outboxSize is how many frames may wait for a slow client before new ones
// are dropped for it.
const outboxSize = 256

// TokenValidator checks a bearer token. *auth.JWTManager implements it.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Hub fans bus events out to the connected clients.
type Hub struct {
	bus    *events.Bus
	tokens TokenValidator
	stop   func()

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub subscribes to every event on bus. With a nil validator no client
// can authenticate.
func NewHub(bus *events.Bus, tokens TokenValidator) *Hub {
	h := &Hub{
		bus:     bus,
		tokens:  tokens,
		clients: make(map[*Client]struct{}),
	}
	h.stop = bus.Subscribe(h.fanOut)
	return h
}

// fanOut encodes e once and queues it for every authenticated client allowed
// to see it whose filter accepts it. Task events only reach the task's
// creator and assignee.
func (h *Hub) fanOut(e events.Event) {
	audience, taskEvent := events.TaskAudience(e)

	frame, err := NewEventFrame(string(e.Type), e)
	if err != nil {
		slog.Error("encode event frame", "event", e.Type, "error", err)
		return
	}
	data, err := MarshalFrame(frame)
	if err != nil {
		slog.Error("encode event frame", "event", e.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.mayReceive(audience, taskEvent) || !c.accepts(e.Type) {
			continue
		}
		if !c.enqueue(data) {
			slog.Debug("ws outbox full, event dropped", "event", e.Type)
		}
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("ws client connected", "clients", n)
}

// remove drops c and closes its outbox. It is a no-op for a client the hub
// already let go of.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.outbox)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		slog.Info("ws client disconnected", "clients", n)
	}
}

// ServeWS upgrades the request and serves the connection until it closes.
// A bearer token in the Authorization header or the "token" query parameter
// authenticates it up front; an invalid one leaves it anonymous.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	c := newClient(h, conn)
	h.add(c)

	token, ok := auth.BearerToken(r)
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token != "" {
		if _, err := c.authenticate(token); err != nil {
			slog.Debug("ws upgrade token rejected", "error", err)
		}
	}

	c.serve(r.Context())
}

// Close stops the fan-out and disconnects every client.
func (h *Hub) Close() {
	if h.stop != nil {
		h.stop()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
		close(c.outbox)
	}
}
