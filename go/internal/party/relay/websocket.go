package relay

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketChannel is a room handle connected to a relay gateway
type WebSocketChannel struct {
	conn *websocket.Conn
	code string

	writeMu sync.Mutex

	mu      sync.Mutex
	handler func(data []byte)
	started bool
	closed  bool
	done    chan struct{}
}

// DialWebSocket connects to the gateway at gatewayURL and joins room code
func DialWebSocket(ctx context.Context, gatewayURL, code string) (*WebSocketChannel, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	return &WebSocketChannel{conn: conn, code: code, done: make(chan struct{})}, nil
}

// Emit implements Channel
func (c *WebSocketChannel) Emit(ctx context.Context, data []byte) error {
	if c.isClosed() {
		return ErrClosed
	}

	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write to gateway: %w", err)
	}
	return nil
}

// Listen implements Channel. The read loop starts on the first call.
func (c *WebSocketChannel) Listen(handler func(data []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.handler = handler
	if !c.started {
		c.started = true
		go c.readPump()
	}
	return nil
}

// Done is closed when the connection to the gateway ends
func (c *WebSocketChannel) Done() <-chan struct{} {
	return c.done
}

// Close implements Channel
func (c *WebSocketChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	if !started {
		close(c.done)
	}
	return err
}

func (c *WebSocketChannel) readPump() {
	defer close(c.done)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("code", c.code).Msg("gateway connection lost")
			}
			return
		}

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()
		if handler != nil {
			handler(message)
		}
	}
}

func (c *WebSocketChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
