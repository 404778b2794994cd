package session

import (
	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/mcdev12/partyspin/go/internal/party/election"
	"github.com/mcdev12/partyspin/go/internal/party/events"
	"github.com/mcdev12/partyspin/go/internal/party/spin"
	"github.com/mcdev12/partyspin/go/internal/party/votes"
)

// Snapshot is a read-only view of a session for rendering
type Snapshot struct {
	Code     string                        `json:"code"`
	SelfID   string                        `json:"self_id"`
	HostID   string                        `json:"host_id"`
	IsHost   bool                          `json:"is_host"`
	Peers    []models.Peer                 `json:"peers"`
	Quorum   int                           `json:"quorum"`
	State    spin.State                    `json:"state"`
	Votes    [models.SlotCount]votes.Tally `json:"votes"`
	History  []spin.HistoryEntry           `json:"history"`
	Chat     []events.ChatPayload          `json:"chat"`
	Spinning bool                          `json:"spinning"`
}

// Snapshot captures the current live set, host, spin state and ballots
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.presence.LivePeers()
	snap := Snapshot{
		Code:     s.cfg.Code,
		SelfID:   s.cfg.ClientID,
		HostID:   election.HostID(live),
		Peers:    live,
		Quorum:   votes.Quorum(len(live)),
		State:    s.replica.State(),
		History:  s.replica.History(),
		Chat:     append([]events.ChatPayload(nil), s.chat...),
		Spinning: s.spinning,
	}
	snap.IsHost = snap.HostID == s.cfg.ClientID
	for i := range snap.Votes {
		snap.Votes[i] = s.ballots.Tally(i)
	}
	return snap
}

// Host returns the current host, if any peer is live
func (s Snapshot) Host() (models.Peer, bool) {
	for _, p := range s.Peers {
		if p.ID == s.HostID {
			return p, true
		}
	}
	return models.Peer{}, false
}
