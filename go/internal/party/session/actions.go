package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/mcdev12/partyspin/go/internal/party/events"
	"github.com/mcdev12/partyspin/go/internal/party/orchestrator"
	"github.com/mcdev12/partyspin/go/internal/party/presence"
	"github.com/mcdev12/partyspin/go/internal/party/spin"
	"github.com/mcdev12/partyspin/go/internal/party/votes"
	"github.com/rs/zerolog/log"
)

// Spin draws a new state for every slot not pinned in req and replicates it. Only the
// current host may spin; other peers get ErrNotHost. On a draw failure the previous state
// is kept, nothing is broadcast and the error is returned to this caller only.
func (s *Session) Spin(ctx context.Context, req orchestrator.Request) (spin.State, error) {
	s.mu.Lock()
	live, isHost := s.liveLocked()
	s.noteHostLocked(live)
	current := s.replica.State()
	if s.left {
		s.mu.Unlock()
		return current, ErrLeft
	}
	if !isHost {
		s.mu.Unlock()
		return current, ErrNotHost
	}
	if s.spinning {
		s.mu.Unlock()
		return current, ErrSpinInProgress
	}
	s.spinning = true
	s.lastRequest = req
	recent := s.replica.RecentDishIDs()
	s.mu.Unlock()
	s.publishUpdate()

	start := s.clock.Now()
	next, err := s.orch.Spin(ctx, current, req, recent)
	return s.finishSpin(ctx, "spin", -1, start, current, next, err)
}

// CastVote records this peer's ballot for slot idx and broadcasts it. When this peer is
// host the slot is evaluated right away.
func (s *Session) CastVote(ctx context.Context, idx int, kind events.VoteKind) error {
	if !models.ValidSlot(idx) {
		return fmt.Errorf("%w: %d", votes.ErrSlotOutOfRange, idx)
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown vote kind %q", kind)
	}

	vote := &events.VotePayload{
		ID:       uuid.New().String(),
		Idx:      idx,
		Kind:     kind,
		VoterID:  s.cfg.ClientID,
		ClientID: s.cfg.ClientID,
	}

	s.mu.Lock()
	s.seenVotes.Add(vote.ID)
	if err := s.ballots.Cast(idx, kind, s.cfg.ClientID); err != nil {
		s.mu.Unlock()
		return err
	}
	s.presence.TouchSelf()
	s.mu.Unlock()

	emitErr := s.emit(ctx, vote)
	s.publishUpdate()
	s.evaluate(ctx, idx)
	return emitErr
}

// evaluate resolves slot idx on the host: a keep quorum locks the slot, otherwise a reroll
// quorum redraws just that slot. Non-hosts and hosts with a draw in flight do nothing.
func (s *Session) evaluate(ctx context.Context, idx int) {
	s.mu.Lock()
	live, isHost := s.liveLocked()
	if !isHost || s.spinning || s.left {
		s.mu.Unlock()
		return
	}
	current := s.replica.State()
	if current.Slots[idx] == nil {
		s.mu.Unlock()
		return
	}

	switch s.ballots.Evaluate(idx, live) {
	case votes.DecisionLock:
		next := current.WithLock(idx)
		s.applyLocked(next)
		s.mu.Unlock()

		log.Info().
			Str("code", s.cfg.Code).
			Str("host_id", s.cfg.ClientID).
			Int("slot", idx).
			Str("kind", string(events.VoteKeep)).
			Msg("keep quorum reached, locking slot")
		s.broadcast(ctx, next)
		s.publishUpdate()

	case votes.DecisionReroll:
		s.spinning = true
		s.ballots.Clear(idx)
		req := s.lastRequest
		recent := s.replica.RecentDishIDs()
		s.mu.Unlock()

		log.Info().
			Str("code", s.cfg.Code).
			Str("host_id", s.cfg.ClientID).
			Int("slot", idx).
			Str("kind", string(events.VoteReroll)).
			Msg("reroll quorum reached, redrawing slot")
		s.publishUpdate()

		start := s.clock.Now()
		next, err := s.orch.Reroll(ctx, current, idx, req, recent)
		// vote-driven rerolls have no caller to report to; finishSpin logs failures
		_, _ = s.finishSpin(ctx, "reroll", idx, start, current, next, err)

	default:
		s.mu.Unlock()
	}
}

// finishSpin clears the in-flight guard and, on success, applies and replicates next
func (s *Session) finishSpin(ctx context.Context, kind string, slot int, start time.Time, current, next spin.State, err error) (spin.State, error) {
	elapsed := s.clock.Since(start)

	s.mu.Lock()
	s.spinning = false
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordSpin(kind, false, elapsed)
		log.Warn().
			Err(err).
			Str("code", s.cfg.Code).
			Str("kind", kind).
			Int("slot", slot).
			Dur("elapsed", elapsed).
			Msg("draw failed, keeping previous state")
		s.publishUpdate()
		return current, err
	}
	s.applyLocked(next)
	s.mu.Unlock()

	s.metrics.RecordSpin(kind, true, elapsed)
	log.Info().
		Str("code", s.cfg.Code).
		Str("host_id", s.cfg.ClientID).
		Str("kind", kind).
		Str("summary", next.Summary).
		Dur("elapsed", elapsed).
		Msg("spin complete")

	s.broadcast(ctx, next)
	s.publishUpdate()
	return next, nil
}

// broadcast replicates state to every peer
func (s *Session) broadcast(ctx context.Context, state spin.State) {
	if err := s.emit(ctx, state.Payload()); err != nil {
		log.Error().Err(err).Str("code", s.cfg.Code).Msg("failed to replicate spin state")
	}
}

// Rename changes this peer's nickname and announces it
func (s *Session) Rename(ctx context.Context, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return errors.New("nickname cannot be empty")
	}
	s.mu.Lock()
	s.presence.Observe(s.cfg.ClientID, presence.Announce{Nickname: &nickname})
	s.mu.Unlock()

	err := s.emit(ctx, &events.NickPayload{ClientID: s.cfg.ClientID, Nickname: nickname})
	s.publishUpdate()
	return err
}

// Chat appends a message to the local log and sends it to the room
func (s *Session) Chat(ctx context.Context, text string) (events.ChatPayload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return events.ChatPayload{}, errors.New("chat message cannot be empty")
	}
	msg := events.ChatPayload{
		ID:   uuid.New().String(),
		TS:   s.clock.Now().UnixMilli(),
		From: s.cfg.ClientID,
		Text: text,
	}

	s.mu.Lock()
	s.presence.TouchSelf()
	s.appendChatLocked(msg)
	s.mu.Unlock()

	err := s.emit(ctx, &msg)
	s.publishUpdate()
	return msg, err
}
