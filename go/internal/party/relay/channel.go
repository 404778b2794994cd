package relay

import (
	"context"
	"sync"
)

// BusChannel is a room handle over a shared Bus. Closing it unsubscribes but leaves the
// bus open for other rooms.
type BusChannel struct {
	bus     Bus
	subject string

	mu     sync.Mutex
	sub    Subscription
	closed bool
}

// NewBusChannel opens the room code under subject prefix
func NewBusChannel(bus Bus, prefix, code string) (*BusChannel, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	return &BusChannel{bus: bus, subject: RoomSubject(prefix, code)}, nil
}

// Emit implements Channel
func (c *BusChannel) Emit(ctx context.Context, data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.bus.Publish(ctx, c.subject, data)
}

// Listen implements Channel; a second call replaces the handler
func (c *BusChannel) Listen(handler func(data []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			return err
		}
	}
	sub, err := c.bus.Subscribe(c.subject, func(_ string, data []byte) { handler(data) })
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

// Close implements Channel
func (c *BusChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.sub != nil {
		return c.sub.Unsubscribe()
	}
	return nil
}
