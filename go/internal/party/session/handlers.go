package session

import (
	"context"

	"github.com/mcdev12/partyspin/go/internal/party/election"
	"github.com/mcdev12/partyspin/go/internal/party/events"
	"github.com/mcdev12/partyspin/go/internal/party/presence"
	"github.com/mcdev12/partyspin/go/internal/party/spin"
	"github.com/rs/zerolog/log"
)

// HandleMessage decodes a raw relay frame and applies it. Frames that fail validation are
// dropped here and never reach protocol state.
func (s *Session) HandleMessage(raw []byte) {
	ev, err := events.Decode(raw, s.cfg.Code)
	if err != nil {
		log.Debug().Err(err).Str("code", s.cfg.Code).Msg("dropping relay frame")
		s.metrics.RecordEvent("invalid", false)
		return
	}
	s.handleEvent(s.baseCtx, ev)
}

func (s *Session) handleEvent(ctx context.Context, ev events.Event) {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	sender := ev.SenderID()
	// our own presence, vote and chat events were applied when we sent them
	if sender == s.cfg.ClientID {
		return
	}
	s.metrics.RecordEvent(string(ev.Type()), true)

	var changed bool
	switch p := ev.Payload.(type) {
	case *events.AnnouncePayload:
		changed = s.onAnnounce(ctx, p)
	case *events.BeatPayload:
		changed = s.observe(p.ClientID, presence.Announce{})
	case *events.ByePayload:
		changed = s.onBye(p)
	case *events.NickPayload:
		nick := p.Nickname
		s.observe(p.ClientID, presence.Announce{Nickname: &nick})
		changed = true
	case *events.SpinResultPayload:
		s.onSpinResult(p)
		changed = true
	case *events.SyncRequestPayload:
		changed = s.onSyncRequest(ctx, p)
	case *events.VotePayload:
		changed = s.onVote(ctx, p)
	case *events.ChatPayload:
		changed = s.onChat(p)
	}

	if changed {
		s.publishUpdate()
	}
}

// observe upserts a peer and reports whether it just became live
func (s *Session) observe(id string, a presence.Announce) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasLive := s.presence.Observe(id, a)
	s.noteHostLocked(s.presence.LivePeers())
	return !wasLive
}

// onAnnounce records the announcing peer and answers a hello. When the newcomer outranks
// this peer as host, the spin state is handed over so the new host does not start empty.
func (s *Session) onAnnounce(ctx context.Context, p *events.AnnouncePayload) bool {
	nick, creator := p.Nickname, p.Creator

	s.mu.Lock()
	_, wasHost := s.liveLocked()
	s.presence.Observe(p.ClientID, presence.Announce{Nickname: &nick, Creator: &creator})
	live, isHost := s.liveLocked()
	s.noteHostLocked(live)
	state := s.replica.State()
	s.mu.Unlock()

	if p.EventType() == events.TypeHello {
		self := s.presence.Self()
		if err := s.emit(ctx, events.NewHere(self.ID, self.Nickname, self.IsCreator)); err != nil {
			log.Debug().Err(err).Str("code", s.cfg.Code).Msg("failed to answer hello")
		}
	}
	if wasHost && !isHost && !state.IsEmpty() {
		log.Info().
			Str("code", s.cfg.Code).
			Str("client_id", s.cfg.ClientID).
			Str("host_id", election.HostID(live)).
			Msg("handing spin state to new host")
		s.broadcast(ctx, state)
	}
	return true
}

func (s *Session) onBye(p *events.ByePayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasLive := s.presence.Remove(p.ClientID)
	s.ballots.Forget(p.ClientID)
	s.noteHostLocked(s.presence.LivePeers())
	return wasLive
}

func (s *Session) onSpinResult(p *events.SpinResultPayload) {
	next := spin.FromPayload(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(next)
	log.Debug().
		Str("code", s.cfg.Code).
		Str("client_id", s.cfg.ClientID).
		Str("summary", next.Summary).
		Msg("applied replicated spin")
}

func (s *Session) onSyncRequest(ctx context.Context, p *events.SyncRequestPayload) bool {
	s.mu.Lock()
	changed := !s.presence.Observe(p.ClientID, presence.Announce{})
	live, isHost := s.liveLocked()
	s.noteHostLocked(live)
	state := s.replica.State()
	s.mu.Unlock()

	if !isHost || state.IsEmpty() {
		return changed
	}
	if err := s.emit(ctx, state.Payload()); err != nil {
		log.Warn().Err(err).Str("code", s.cfg.Code).Msg("failed to answer sync request")
	}
	return changed
}

func (s *Session) onVote(ctx context.Context, p *events.VotePayload) bool {
	s.mu.Lock()
	if p.ID != "" && !s.seenVotes.Add(p.ID) {
		s.mu.Unlock()
		log.Debug().Str("code", s.cfg.Code).Str("vote_id", p.ID).Msg("dropping duplicate vote")
		return false
	}
	s.presence.Observe(p.ClientID, presence.Announce{})
	if err := s.ballots.Cast(p.Idx, p.Kind, p.VoterID); err != nil {
		s.mu.Unlock()
		log.Debug().Err(err).Str("code", s.cfg.Code).Msg("dropping vote")
		return false
	}
	s.noteHostLocked(s.presence.LivePeers())
	s.mu.Unlock()

	s.evaluate(ctx, p.Idx)
	return true
}

func (s *Session) onChat(p *events.ChatPayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence.Observe(p.From, presence.Announce{})
	s.noteHostLocked(s.presence.LivePeers())
	return s.appendChatLocked(*p)
}

// applyLocked replaces the replica and clears every ballot. Callers hold s.mu.
func (s *Session) applyLocked(next spin.State) {
	s.replica.Apply(next, s.clock.Now())
	s.ballots.ClearAll()
}

// appendChatLocked adds a message to the bounded chat log, skipping redelivered ids.
// Callers hold s.mu.
func (s *Session) appendChatLocked(msg events.ChatPayload) bool {
	for _, existing := range s.chat {
		if existing.ID == msg.ID {
			return false
		}
	}
	s.chat = append(s.chat, msg)
	if len(s.chat) > s.cfg.ChatLogSize {
		s.chat = s.chat[len(s.chat)-s.cfg.ChatLogSize:]
	}
	return true
}
