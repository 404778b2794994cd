package spin

import "time"

// DefaultHistorySize is the number of recent spins kept per peer
const DefaultHistorySize = 10

// HistoryEntry is one applied spin in the recent-history log
type HistoryEntry struct {
	Summary   string    `json:"summary"`
	DishIDs   []string  `json:"dish_ids"`
	AppliedAt time.Time `json:"applied_at"`
}

// Replica is a peer's copy of the room's spin state. Apply replaces the state wholesale;
// there is no merge. Callers serialize access.
type Replica struct {
	state       State
	lastSummary string
	history     []HistoryEntry
	size        int
}

// NewReplica creates an empty replica keeping up to historySize entries
func NewReplica(historySize int) *Replica {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Replica{size: historySize}
}

// Apply overwrites the local state with next. The history log only grows when the
// summary differs from the last applied one, so an echoed or redelivered broadcast
// leaves it unchanged. It reports whether a history entry was appended.
func (r *Replica) Apply(next State, at time.Time) bool {
	r.state = State{Slots: next.Slots.Clone(), Locks: next.Locks, Summary: next.Summary}

	if next.Summary == "" || next.Summary == r.lastSummary {
		return false
	}
	r.lastSummary = next.Summary
	r.history = append(r.history, HistoryEntry{Summary: next.Summary, DishIDs: next.DishIDs(), AppliedAt: at})
	if len(r.history) > r.size {
		r.history = r.history[len(r.history)-r.size:]
	}
	return true
}

// State returns a copy of the current state
func (r *Replica) State() State {
	return State{Slots: r.state.Slots.Clone(), Locks: r.state.Locks, Summary: r.state.Summary}
}

// History returns the recent-history log, oldest first
func (r *Replica) History() []HistoryEntry {
	return append([]HistoryEntry(nil), r.history...)
}

// RecentDishIDs returns the distinct dish ids served in the recent history, newest first
func (r *Replica) RecentDishIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for i := len(r.history) - 1; i >= 0; i-- {
		for _, id := range r.history[i].DishIDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
