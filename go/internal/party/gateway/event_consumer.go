package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mcdev12/partyspin/go/internal/party/relay"
	"github.com/rs/zerolog/log"
)

// EventConsumer subscribes to every room subject on the bus and fans frames out to the
// websocket connections held by this gateway instance
type EventConsumer struct {
	connectionManager *ConnectionManager
	bus               relay.Bus
	prefix            string

	mu  sync.Mutex
	sub relay.Subscription
}

// NewEventConsumer creates a consumer for rooms under prefix
func NewEventConsumer(cm *ConnectionManager, bus relay.Bus, prefix string) *EventConsumer {
	return &EventConsumer{
		connectionManager: cm,
		bus:               bus,
		prefix:            prefix,
	}
}

// Start subscribes and blocks until ctx is done
func (ec *EventConsumer) Start(ctx context.Context) error {
	subject := relay.RoomWildcard(ec.prefix)
	sub, err := ec.bus.Subscribe(subject, ec.processMessage)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	ec.mu.Lock()
	ec.sub = sub
	ec.mu.Unlock()

	log.Info().Str("subject", subject).Msg("room event consumer started")

	<-ctx.Done()
	log.Info().Msg("event consumer shutting down")
	return ec.Stop()
}

// Stop unsubscribes from the bus; it is safe to call more than once
func (ec *EventConsumer) Stop() error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.sub == nil {
		return nil
	}
	err := ec.sub.Unsubscribe()
	ec.sub = nil
	return err
}

// Running reports whether the bus subscription is active
func (ec *EventConsumer) Running() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.sub != nil
}

func (ec *EventConsumer) processMessage(subject string, data []byte) {
	code, ok := strings.CutPrefix(subject, ec.prefix+".")
	if !ok || relay.ValidateCode(code) != nil {
		log.Debug().Str("subject", subject).Msg("ignoring message on unexpected subject")
		return
	}
	ec.connectionManager.BroadcastToRoom(code, data)
}
