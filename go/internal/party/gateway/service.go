// Package gateway relays party room frames between websocket peers and the NATS room
// subjects. It only forwards frames; it never interprets spin state.
package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/partyspin/go/internal/config"
	"github.com/mcdev12/partyspin/go/internal/party/relay"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
)

// Service bundles the connection manager, the bus consumer and the HTTP handlers
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	health            *GatewayHealthChecker
	config            Config
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	SubjectPrefix    string
	AllowedOrigins   []string
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		SubjectPrefix:    config.Default().NATS.SubjectPrefix,
		AllowedOrigins:   []string{"*"},
	}
}

// ConfigFrom builds the gateway configuration from the application config
func ConfigFrom(cfg config.Config) Config {
	return Config{
		ConnectionConfig: ConnectionConfigFrom(cfg.Gateway),
		SubjectPrefix:    cfg.NATS.SubjectPrefix,
		AllowedOrigins:   cfg.Gateway.AllowedOrigins,
	}
}

// NewService creates a gateway relaying through bus
func NewService(cfg Config, bus relay.Bus) *Service {
	cm := NewConnectionManager(cfg.ConnectionConfig, bus, cfg.SubjectPrefix)
	consumer := NewEventConsumer(cm, bus, cfg.SubjectPrefix)

	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		eventConsumer:     consumer,
		health:            NewGatewayHealthChecker(cm, consumer, bus),
		config:            cfg,
	}
}

// Start runs the connection manager and the bus consumer until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Str("subject_prefix", s.config.SubjectPrefix).Msg("starting party gateway service")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.connectionManager.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return s.eventConsumer.Start(ctx)
	})

	err := g.Wait()
	log.Info().Msg("party gateway service stopped")
	return err
}

// Stop unsubscribes from the bus; connections close when the Start context ends
func (s *Service) Stop() error {
	return s.eventConsumer.Stop()
}

// RegisterRoutes registers the websocket, stats and health routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	mux.Handle("/health", s.health)
	log.Info().Msg("party gateway routes registered")
}

// Handler returns the gateway routes wrapped with CORS and h2c
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodOptions,
		},
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "party_gateway"
	stats["consumer_active"] = s.eventConsumer.Running()
	return stats
}

// Health runs the health check directly
func (s *Service) Health(ctx context.Context) HealthStatus {
	return s.health.Check(ctx)
}
