package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/partyspin/go/internal/config"
	"github.com/mcdev12/partyspin/go/internal/party/events"
	"github.com/mcdev12/partyspin/go/internal/party/relay"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages websocket connections grouped by room code
type ConnectionManager struct {
	// Connection pools organized by room code
	rooms map[string]map[*Connection]bool
	mu    sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	bus    relay.Bus
	prefix string

	broadcastCh chan BroadcastMessage

	framesIn      atomic.Uint64
	framesOut     atomic.Uint64
	framesDropped atomic.Uint64
	lastFrameAt   atomic.Int64
}

// Connection is one peer's websocket, bound to a single room
type Connection struct {
	ID      string
	Code    string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for websocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a frame to deliver to every local connection of a room
type BroadcastMessage struct {
	Code string
	Data []byte
}

// DefaultConnectionConfig returns default websocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// ConnectionConfigFrom builds a connection config from the gateway section
func ConnectionConfigFrom(cfg config.GatewayConfig) ConnectionConfig {
	cc := DefaultConnectionConfig()
	if cfg.WriteTimeout > 0 {
		cc.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.ReadTimeout > 0 {
		cc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.PingInterval > 0 {
		cc.PingInterval = cfg.PingInterval
	}
	if cfg.MaxMessageSize > 0 {
		cc.MaxMessageSize = cfg.MaxMessageSize
	}
	cc.CheckOrigin = originChecker(cfg.AllowedOrigins)
	return cc
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// non-browser clients send no origin
		return origin == "" || set[origin]
	}
}

// NewConnectionManager creates a connection manager publishing client frames on bus
func NewConnectionManager(config ConnectionConfig, bus relay.Bus, prefix string) *ConnectionManager {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	return &ConnectionManager{
		rooms: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		bus:         bus,
		prefix:      prefix,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcast messages until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket bound to room code
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, code string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Code:        code,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("code", code).
		Msg("websocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.rooms[conn.Code] == nil {
		cm.rooms[conn.Code] = make(map[*Connection]bool)
	}
	cm.rooms[conn.Code][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("code", conn.Code).
		Int("room_connections", len(cm.rooms[conn.Code])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.rooms[conn.Code]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.Send)

	if len(connections) == 0 {
		delete(cm.rooms, conn.Code)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("code", conn.Code).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.rooms {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// BroadcastToRoom queues a frame for every local connection in room code
func (cm *ConnectionManager) BroadcastToRoom(code string, data []byte) {
	select {
	case cm.broadcastCh <- BroadcastMessage{Code: code, Data: data}:
	default:
		cm.framesDropped.Add(1)
		log.Warn().Str("code", code).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.rooms[message.Code]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if !cm.enqueue(conn, message.Data) {
			// Connection is slow or dead
			log.Warn().
				Str("connection_id", conn.ID).
				Str("code", conn.Code).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
			continue
		}
		cm.framesOut.Add(1)
	}

	log.Debug().
		Str("code", message.Code).
		Int("connections", len(targets)).
		Msg("frame broadcasted")
}

// enqueue hands data to the connection's writer; the read lock keeps Send open meanwhile
func (cm *ConnectionManager) enqueue(conn *Connection, data []byte) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if !cm.rooms[conn.Code][conn] {
		return true
	}
	select {
	case conn.Send <- data:
		return true
	default:
		return false
	}
}

// relayClientFrame validates a frame read from a client and publishes it on the room subject
func (cm *ConnectionManager) relayClientFrame(c *Connection, message []byte) {
	if _, err := events.Decode(message, c.Code); err != nil {
		cm.framesDropped.Add(1)
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Str("code", c.Code).
			Msg("dropping client frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.WriteTimeout)
	defer cancel()
	if err := cm.bus.Publish(ctx, relay.RoomSubject(cm.prefix, c.Code), message); err != nil {
		cm.framesDropped.Add(1)
		log.Error().
			Err(err).
			Str("connection_id", c.ID).
			Str("code", c.Code).
			Msg("failed to publish client frame")
		return
	}
	cm.framesIn.Add(1)
	cm.lastFrameAt.Store(time.Now().UnixNano())
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	totalConnections := 0
	roomCounts := make(map[string]int)
	for code, connections := range cm.rooms {
		totalConnections += len(connections)
		roomCounts[code] = len(connections)
	}

	return map[string]interface{}{
		"total_connections": totalConnections,
		"active_rooms":      len(cm.rooms),
		"room_connections":  roomCounts,
		"frames_in":         cm.framesIn.Load(),
		"frames_out":        cm.framesOut.Load(),
		"frames_dropped":    cm.framesDropped.Load(),
	}
}

// LastFrameTime returns when a client frame was last relayed
func (cm *ConnectionManager) LastFrameTime() time.Time {
	nanos := cm.lastFrameAt.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		c.Manager.relayClientFrame(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
