package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/coder/websocket"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/events"
)

var errInvalidParams = errors.New("invalid params")

// Client is one WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	outbox chan []byte

	mu     sync.Mutex
	claims *auth.Claims
	filter []events.EventType
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{hub: h, conn: conn, outbox: make(chan []byte, outboxSize)}
}

// requestHandler answers one request; a nil error means ok=true.
type requestHandler func(c *Client, params json.RawMessage) (any, error)

var handlers = map[Method]requestHandler{
	MethodPing:         handlePing,
	MethodAuthenticate: handleAuthenticate,
	MethodSubscribe:    handleSubscribe,
}

func handlePing(*Client, json.RawMessage) (any, error) {
	return map[string]string{"message": "pong"}, nil
}

func handleAuthenticate(c *Client, raw json.RawMessage) (any, error) {
	var params AuthenticateParams
	if err := json.Unmarshal(raw, &params); err != nil || params.Token == "" {
		return nil, errInvalidParams
	}
	claims, err := c.authenticate(params.Token)
	if err != nil {
		return nil, err
	}
	return map[string]string{"user_id": claims.UserID, "username": claims.Username}, nil
}

func handleSubscribe(c *Client, raw json.RawMessage) (any, error) {
	var params SubscribeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errInvalidParams
		}
	}
	filter := make([]events.EventType, 0, len(params.Events))
	for _, t := range params.Events {
		filter = append(filter, events.EventType(t))
	}
	c.mu.Lock()
	c.filter = filter
	c.mu.Unlock()
	return params, nil
}

func (c *Client) accepts(t events.EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.filter) == 0 || slices.Contains(c.filter, t)
}

// mayReceive reports whether the connection's user may see an event.
// Anonymous connections only get responses to their own requests.
func (c *Client) mayReceive(audience []string, taskEvent bool) bool {
	claims := c.identity()
	if claims == nil {
		return false
	}
	return !taskEvent || slices.Contains(audience, claims.UserID)
}

func (c *Client) identity() *auth.Claims {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claims
}

// authenticate binds the token's identity to the connection. The first
// success announces user.connected.
func (c *Client) authenticate(token string) (*auth.Claims, error) {
	if c.hub.tokens == nil {
		return nil, auth.ErrInvalidToken
	}
	claims, err := c.hub.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	first := c.claims == nil
	c.claims = claims
	c.mu.Unlock()

	if first {
		c.hub.bus.Publish(events.NewTypedEvent(events.SourceHub, claims.UserID,
			events.UserConnectedPayload{Username: claims.Username}))
	}
	return claims, nil
}

// enqueue reports false when the outbox is full. Callers hold the hub's
// read lock so the outbox cannot be closed underneath them.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.outbox <- data:
		return true
	default:
		return false
	}
}

// serve runs the writer in the background and reads requests until the
// connection ends, then unregisters the client.
func (c *Client) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.writeLoop(ctx)

	defer func() {
		c.hub.remove(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
		if claims := c.identity(); claims != nil {
			c.hub.bus.Publish(events.NewTypedEvent(events.SourceHub, claims.UserID,
				events.UserDisconnectedPayload{Username: claims.Username}))
		}
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			slog.Debug("ws read ended", "status", websocket.CloseStatus(err), "error", err)
			return
		}
		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Warn("ws bad frame", "error", err)
			continue
		}
		if frame.Type != FrameTypeRequest {
			slog.Debug("ws ignoring frame", "type", frame.Type)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(req Frame) {
	h, ok := handlers[Method(req.Method)]
	if !ok {
		c.respond(NewResponseFrame(req.ID, false, nil, "unknown method: "+req.Method))
		return
	}
	payload, err := h(c, req.Params)
	if err != nil {
		c.respond(NewResponseFrame(req.ID, false, nil, err.Error()))
		return
	}
	c.respond(NewResponseFrame(req.ID, true, payload, ""))
}

func (c *Client) respond(f Frame, err error) {
	if err != nil {
		slog.Error("encode response", "id", f.ID, "error", err)
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		slog.Error("encode response", "id", f.ID, "error", err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; ok {
		c.enqueue(data)
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case data, ok := <-c.outbox:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
