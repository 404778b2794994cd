// Package session runs the party protocol for one peer in one room.
//
// Every in-memory transition happens under the session mutex and is synchronous; relay
// emits and draw calls happen with the mutex released. Host-only work is gated by
// recomputing the host from the live peer set at the moment of acting.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/mcdev12/partyspin/go/internal/party/draw"
	"github.com/mcdev12/partyspin/go/internal/party/election"
	"github.com/mcdev12/partyspin/go/internal/party/events"
	"github.com/mcdev12/partyspin/go/internal/party/orchestrator"
	"github.com/mcdev12/partyspin/go/internal/party/presence"
	"github.com/mcdev12/partyspin/go/internal/party/relay"
	"github.com/mcdev12/partyspin/go/internal/party/spin"
	"github.com/mcdev12/partyspin/go/internal/party/votes"
	"github.com/rs/zerolog/log"
)

const (
	emitTimeout     = 5 * time.Second
	updateBuffer    = 16
	seenVotesLimit  = 512
	defaultChatSize = 50
)

var (
	ErrNotHost        = errors.New("only the host can do that")
	ErrSpinInProgress = errors.New("a spin is already in progress")
	ErrLeft           = errors.New("session has left the room")
	ErrDisconnected   = errors.New("relay connection lost")
)

// transportDone is implemented by channels that can lose their connection, like the
// gateway websocket channel
type transportDone interface {
	Done() <-chan struct{}
}

// Config holds the identity and protocol timings of a peer
type Config struct {
	Code              string
	ClientID          string
	Nickname          string
	Creator           bool
	TTL               time.Duration
	HeartbeatInterval time.Duration
	HistorySize       int
	ChatLogSize       int
	DrawTimeout       time.Duration
}

// DefaultConfig returns protocol defaults for room code
func DefaultConfig(code string) Config {
	return Config{
		Code:              code,
		ClientID:          uuid.New().String(),
		TTL:               presence.DefaultTTL,
		HeartbeatInterval: 15 * time.Second,
		HistorySize:       spin.DefaultHistorySize,
		ChatLogSize:       defaultChatSize,
		DrawTimeout:       orchestrator.DefaultDrawTimeout,
	}
}

// Option customizes a session
type Option func(*Session)

// WithClock replaces the real clock, typically with a fake one in tests
func WithClock(clock clockwork.Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithMetrics installs a metrics collector
func WithMetrics(m MetricsCollector) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is one peer's view of a party room
type Session struct {
	cfg     Config
	clock   clockwork.Clock
	channel relay.Channel
	orch    *orchestrator.Orchestrator
	metrics MetricsCollector

	baseCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	updates chan Snapshot

	mu          sync.Mutex
	presence    *presence.Tracker
	replica     *spin.Replica
	ballots     *votes.Ballots
	seenVotes   *votes.SeenSet
	chat        []events.ChatPayload
	lastRequest orchestrator.Request
	spinning    bool
	hostID      string // last observed host, for change logging only
	joined      bool
	leaving     bool
	left        bool
}

// New creates a session for cfg over channel; drawer is only used while this peer is host
func New(cfg Config, channel relay.Channel, drawer draw.Drawer, opts ...Option) (*Session, error) {
	if err := relay.ValidateCode(cfg.Code); err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, errors.New("relay channel required")
	}
	if drawer == nil {
		return nil, errors.New("drawer required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.New().String()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.ChatLogSize <= 0 {
		cfg.ChatLogSize = defaultChatSize
	}

	s := &Session{
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		channel: channel,
		orch:    orchestrator.New(drawer, cfg.DrawTimeout),
		metrics: &NoOpMetricsCollector{},
		done:    make(chan struct{}),
		updates: make(chan Snapshot, updateBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	s.presence = presence.NewTracker(s.clock, cfg.TTL, models.Peer{
		ID:        cfg.ClientID,
		Nickname:  cfg.Nickname,
		IsCreator: cfg.Creator,
	})
	s.replica = spin.NewReplica(cfg.HistorySize)
	s.ballots = votes.NewBallots()
	s.seenVotes = votes.NewSeenSet(seenVotesLimit)
	s.hostID = cfg.ClientID

	return s, nil
}

// ID returns this peer's client id
func (s *Session) ID() string {
	return s.cfg.ClientID
}

// Code returns the room code
func (s *Session) Code() string {
	return s.cfg.Code
}

// Join starts listening on the room, announces this peer and asks the host for state
func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return ErrLeft
	}
	if s.joined {
		s.mu.Unlock()
		return nil
	}
	s.joined = true
	self := s.presence.Self()
	s.mu.Unlock()

	if err := s.channel.Listen(s.HandleMessage); err != nil {
		return fmt.Errorf("listen on room %s: %w", s.cfg.Code, err)
	}

	log.Info().
		Str("code", s.cfg.Code).
		Str("client_id", s.cfg.ClientID).
		Bool("creator", self.IsCreator).
		Msg("joining party room")

	if err := s.emit(ctx, events.NewHello(self.ID, self.Nickname, self.IsCreator)); err != nil {
		return err
	}
	s.publishUpdate()
	return s.RequestSync(ctx)
}

// Run sends heartbeats until ctx is cancelled, then leaves the room. If the channel's
// connection drops, Run leaves and returns ErrDisconnected.
func (s *Session) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	var lost <-chan struct{}
	if td, ok := s.channel.(transportDone); ok {
		lost = td.Done()
	}

	for {
		select {
		case <-ctx.Done():
			leaveCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
			err := s.Leave(leaveCtx)
			cancel()
			return err
		case <-lost:
			select {
			case <-s.done:
				return nil
			default:
			}
			log.Error().Str("code", s.cfg.Code).Str("client_id", s.cfg.ClientID).Msg("relay connection lost, leaving room")
			leaveCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = s.Leave(leaveCtx)
			cancel()
			return ErrDisconnected
		case <-s.done:
			return nil
		case <-ticker.Chan():
			if err := s.Heartbeat(ctx); err != nil {
				log.Warn().Err(err).Str("code", s.cfg.Code).Msg("heartbeat failed")
			}
		}
	}
}

// Heartbeat refreshes this peer's own record and announces liveness
func (s *Session) Heartbeat(ctx context.Context) error {
	s.presence.TouchSelf()
	return s.emit(ctx, &events.BeatPayload{ClientID: s.cfg.ClientID})
}

// Resume sends an immediate beat, as when a backgrounded peer becomes visible again
func (s *Session) Resume(ctx context.Context) error {
	return s.Heartbeat(ctx)
}

// RequestSync asks the current host to re-send its spin state
func (s *Session) RequestSync(ctx context.Context) error {
	return s.emit(ctx, &events.SyncRequestPayload{ClientID: s.cfg.ClientID})
}

// Leave announces departure and closes the channel; it is safe to call more than once
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.leaving {
		s.mu.Unlock()
		return nil
	}
	s.leaving = true
	wasJoined := s.joined
	s.mu.Unlock()

	var emitErr error
	if wasJoined {
		emitErr = s.emit(ctx, &events.ByePayload{ClientID: s.cfg.ClientID})
	}

	s.mu.Lock()
	s.left = true
	s.mu.Unlock()

	s.cancel()
	close(s.done)
	closeErr := s.channel.Close()

	log.Info().Str("code", s.cfg.Code).Str("client_id", s.cfg.ClientID).Msg("left party room")
	return errors.Join(emitErr, closeErr)
}

// Done is closed once the session has left the room
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Updates delivers a snapshot after every change. Slow consumers only miss
// intermediate snapshots, never the latest one.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

func (s *Session) emit(ctx context.Context, payload events.Payload) error {
	data, err := events.Encode(s.cfg.Code, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	left := s.left
	s.mu.Unlock()
	if left {
		return ErrLeft
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, emitTimeout)
		defer cancel()
	}
	if err := s.channel.Emit(ctx, data); err != nil {
		log.Warn().
			Err(err).
			Str("code", s.cfg.Code).
			Str("event_type", string(payload.EventType())).
			Msg("failed to emit event")
		return fmt.Errorf("emit %s: %w", payload.EventType(), err)
	}
	return nil
}

// liveLocked returns the live set and whether this peer is its host. Callers hold s.mu.
func (s *Session) liveLocked() ([]models.Peer, bool) {
	live := s.presence.LivePeers()
	return live, election.IsHost(live, s.cfg.ClientID)
}

// noteHostLocked logs host migrations. Callers hold s.mu.
func (s *Session) noteHostLocked(live []models.Peer) {
	current := election.HostID(live)
	if current == s.hostID {
		return
	}
	log.Info().
		Str("code", s.cfg.Code).
		Str("client_id", s.cfg.ClientID).
		Str("previous_host", s.hostID).
		Str("host_id", current).
		Msg("party host changed")
	s.hostID = current
	s.metrics.RecordHostChange(current)
}

func (s *Session) publishUpdate() {
	snap := s.Snapshot()
	select {
	case s.updates <- snap:
		return
	default:
	}
	// drop the oldest pending snapshot so the newest always fits
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snap:
	default:
	}
}
