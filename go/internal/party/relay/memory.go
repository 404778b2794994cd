package relay

import (
	"context"
	"strings"
	"sync"
)

// Interceptor decides how many copies of a message reach subscribers: 0 drops it,
// more than 1 duplicates it.
type Interceptor func(subject string, data []byte) int

// MemoryBus is an in-process Bus. Delivery is synchronous on the publishing goroutine,
// which keeps multi-peer tests deterministic.
type MemoryBus struct {
	mu        sync.RWMutex
	subs      map[*memorySub]struct{}
	intercept Interceptor
	closed    bool
}

type memorySub struct {
	bus     *MemoryBus
	subject string
	handler MsgHandler
}

// NewMemoryBus creates an empty in-process bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*memorySub]struct{})}
}

// SetInterceptor installs a hook that can drop or duplicate messages
func (b *MemoryBus) SetInterceptor(fn Interceptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.intercept = fn
}

// Publish implements Bus
func (b *MemoryBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	copies := 1
	if b.intercept != nil {
		copies = b.intercept(subject, data)
	}
	var targets []*memorySub
	for s := range b.subs {
		if subjectMatches(s.subject, subject) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for i := 0; i < copies; i++ {
		for _, s := range targets {
			msg := append([]byte(nil), data...)
			s.handler(subject, msg)
		}
	}
	return nil
}

// Subscribe implements Bus
func (b *MemoryBus) Subscribe(subject string, handler MsgHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &memorySub{bus: b, subject: subject, handler: handler}
	b.subs[s] = struct{}{}
	return s, nil
}

// Close drops every subscription
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[*memorySub]struct{})
	return nil
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s)
	return nil
}

// subjectMatches supports NATS-style "*" single-token and trailing ">" wildcards
func subjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
