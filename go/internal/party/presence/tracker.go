// Package presence tracks which peers of a room are believed alive.
//
// Records are never expired by a timer. Every read filters them through Live, so a peer
// that stops signalling simply stops appearing once its last signal is older than the TTL
// and reappears as soon as anything from it is observed again.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/partyspin/go/internal/models"
)

// DefaultTTL is how long a peer stays live after its last observed signal
const DefaultTTL = 2 * time.Minute

// Announce carries the optional attributes an announce-type event may update
type Announce struct {
	Nickname *string
	Creator  *bool
}

// Tracker holds the presence records of one room as seen by the local peer
type Tracker struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	ttl     time.Duration
	selfID  string
	records map[string]models.Peer
}

// NewTracker creates a tracker that already contains the local peer
func NewTracker(clock clockwork.Clock, ttl time.Duration, self models.Peer) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	self.LastSeenAt = clock.Now()
	return &Tracker{
		clock:   clock,
		ttl:     ttl,
		selfID:  self.ID,
		records: map[string]models.Peer{self.ID: self},
	}
}

// Observe upserts a peer on any signal from it and applies announce attributes if present.
// It reports whether the peer was live before this signal.
func (t *Tracker) Observe(id string, a Announce) bool {
	if id == "" {
		return false
	}
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, exists := t.records[id]
	wasLive := exists && isLive(rec, now, t.ttl)
	if !exists {
		rec = models.Peer{ID: id}
	}
	if a.Nickname != nil {
		rec.Nickname = *a.Nickname
	}
	if a.Creator != nil {
		rec.IsCreator = *a.Creator
	}
	// out-of-order delivery must never move a peer back in time
	if now.After(rec.LastSeenAt) {
		rec.LastSeenAt = now
	}
	t.records[id] = rec
	return wasLive
}

// Touch refreshes a peer's liveness without changing its attributes
func (t *Tracker) Touch(id string) bool {
	return t.Observe(id, Announce{})
}

// TouchSelf refreshes the local peer's own record
func (t *Tracker) TouchSelf() {
	t.Touch(t.selfID)
}

// Remove deletes a peer immediately, as on an explicit departure
func (t *Tracker) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok {
		return false
	}
	delete(t.records, id)
	return isLive(rec, t.clock.Now(), t.ttl)
}

// Self returns the local peer's record
func (t *Tracker) Self() models.Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.records[t.selfID]
}

// Get returns a record regardless of liveness
func (t *Tracker) Get(id string) (models.Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return rec, ok
}

// LivePeers returns the live set ordered creator-first, then by id
func (t *Tracker) LivePeers() []models.Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Live(t.records, t.ttl, t.clock.Now())
}

// LiveCount returns the size of the live set
func (t *Tracker) LiveCount() int {
	return len(t.LivePeers())
}

// TTL returns the liveness window
func (t *Tracker) TTL() time.Duration {
	return t.ttl
}

// Live filters records down to those seen within ttl of now, sorted creator-first then by id
func Live(records map[string]models.Peer, ttl time.Duration, now time.Time) []models.Peer {
	live := make([]models.Peer, 0, len(records))
	for _, rec := range records {
		if isLive(rec, now, ttl) {
			live = append(live, rec)
		}
	}
	SortPeers(live)
	return live
}

// SortPeers orders peers creator-first, then by id ascending
func SortPeers(peers []models.Peer) {
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].IsCreator != peers[j].IsCreator {
			return peers[i].IsCreator
		}
		return peers[i].ID < peers[j].ID
	})
}

func isLive(p models.Peer, now time.Time, ttl time.Duration) bool {
	return now.Sub(p.LastSeenAt) <= ttl
}
