// Package ws provides a WebSocket client for the TaskFlow server.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/dohr-michael/taskflow/internal/events"
	wsprotocol "github.com/dohr-michael/taskflow/internal/gateway/ws"
)

// Client is a WebSocket client for the TaskFlow server.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the server WebSocket endpoint. A non-empty token is sent
// as a bearer header so the connection is authenticated from the start.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	var opts *websocket.DialOptions
	if token != "" {
		opts = &websocket.DialOptions{
			HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
		}
	}
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
	}, nil
}

// Request sends a request frame and returns its id.
func (c *Client) Request(method wsprotocol.Method, params any) (string, error) {
	seq := atomic.AddUint64(&c.reqSeq, 1)
	frame, err := wsprotocol.NewRequestFrame(fmt.Sprintf("req-%d", seq), method, params)
	if err != nil {
		return "", err
	}

	data, err := wsprotocol.MarshalFrame(frame)
	if err != nil {
		return "", err
	}
	return frame.ID, c.conn.Write(c.ctx, websocket.MessageText, data)
}

// Ping sends a ping request.
func (c *Client) Ping() (string, error) {
	return c.Request(wsprotocol.MethodPing, nil)
}

// Authenticate sends an authenticate request carrying token.
func (c *Client) Authenticate(token string) (string, error) {
	return c.Request(wsprotocol.MethodAuthenticate, wsprotocol.AuthenticateParams{Token: token})
}

// Subscribe restricts pushed events to types; none means all.
func (c *Client) Subscribe(types ...string) (string, error) {
	return c.Request(wsprotocol.MethodSubscribe, wsprotocol.SubscribeParams{Events: types})
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// DecodeEvent extracts the bus event carried by an event frame.
func DecodeEvent(f wsprotocol.Frame) (events.Event, error) {
	var e events.Event
	if f.Type != wsprotocol.FrameTypeEvent {
		return e, fmt.Errorf("frame type %q is not an event", f.Type)
	}
	if err := json.Unmarshal(f.Payload, &e); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
