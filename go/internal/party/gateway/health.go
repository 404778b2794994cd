package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcdev12/partyspin/go/internal/party/relay"
	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy        bool      `json:"healthy"`
	BusConnected   bool      `json:"bus_connected"`
	ConsumerActive bool      `json:"consumer_active"`
	Connections    int       `json:"connections"`
	ActiveRooms    int       `json:"active_rooms"`
	LastFrameTime  time.Time `json:"last_frame_time"`
	Errors         []string  `json:"errors"`
}

type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// connectivity is implemented by buses that hold a network connection
type connectivity interface {
	IsConnected() bool
}

type GatewayHealthChecker struct {
	connectionManager *ConnectionManager
	consumer          *EventConsumer
	bus               relay.Bus
}

func NewGatewayHealthChecker(cm *ConnectionManager, consumer *EventConsumer, bus relay.Bus) *GatewayHealthChecker {
	return &GatewayHealthChecker{
		connectionManager: cm,
		consumer:          consumer,
		bus:               bus,
	}
}

func (h *GatewayHealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:      true,
		BusConnected: true,
		Errors:       []string{},
	}

	if c, ok := h.bus.(connectivity); ok {
		status.BusConnected = c.IsConnected()
	}
	if !status.BusConnected {
		status.Healthy = false
		status.Errors = append(status.Errors, "NATS disconnected")
	}

	status.ConsumerActive = h.consumer.Running()
	if !status.ConsumerActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "event consumer not active")
	}

	stats := h.connectionManager.GetConnectionStats()
	status.Connections = stats["total_connections"].(int)
	status.ActiveRooms = stats["active_rooms"].(int)
	status.LastFrameTime = h.connectionManager.LastFrameTime()

	return status
}

// HTTP handler helper
func (h *GatewayHealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health status")
	}
}
