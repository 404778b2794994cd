// Package votes keeps per-slot keep/reroll ballots and turns quorum agreement into a
// decision. A voter holds at most one ballot per slot; casting again replaces it.
package votes

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/mcdev12/partyspin/go/internal/party/events"
)

var ErrSlotOutOfRange = errors.New("slot index out of range")

// Decision is the outcome of evaluating a slot's ballots
type Decision int

const (
	DecisionNone Decision = iota
	DecisionLock
	DecisionReroll
)

func (d Decision) String() string {
	switch d {
	case DecisionLock:
		return "lock"
	case DecisionReroll:
		return "reroll"
	default:
		return "none"
	}
}

type voteSet struct {
	keep   map[string]struct{}
	reroll map[string]struct{}
}

// Tally is a read-only view of one slot's ballots
type Tally struct {
	Keep   []string `json:"keep"`
	Reroll []string `json:"reroll"`
}

// Ballots holds the vote sets of every slot. Callers serialize access.
type Ballots struct {
	slots [models.SlotCount]voteSet
}

// NewBallots creates empty vote sets for every slot
func NewBallots() *Ballots {
	b := &Ballots{}
	b.ClearAll()
	return b
}

// Cast records voter's ballot for slot idx, replacing any earlier ballot for that slot
func (b *Ballots) Cast(idx int, kind events.VoteKind, voter string) error {
	if !models.ValidSlot(idx) {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, idx)
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown vote kind %q", kind)
	}
	set := &b.slots[idx]
	delete(set.keep, voter)
	delete(set.reroll, voter)
	if kind == events.VoteKeep {
		set.keep[voter] = struct{}{}
	} else {
		set.reroll[voter] = struct{}{}
	}
	return nil
}

// Counts returns the number of keep and reroll ballots for slot idx
func (b *Ballots) Counts(idx int) (keep, reroll int) {
	if !models.ValidSlot(idx) {
		return 0, 0
	}
	return len(b.slots[idx].keep), len(b.slots[idx].reroll)
}

// Tally returns the sorted voter ids for slot idx
func (b *Ballots) Tally(idx int) Tally {
	if !models.ValidSlot(idx) {
		return Tally{}
	}
	return Tally{Keep: sortedKeys(b.slots[idx].keep), Reroll: sortedKeys(b.slots[idx].reroll)}
}

// Clear empties the vote sets of slot idx
func (b *Ballots) Clear(idx int) {
	if !models.ValidSlot(idx) {
		return
	}
	b.slots[idx] = voteSet{keep: make(map[string]struct{}), reroll: make(map[string]struct{})}
}

// ClearAll empties every slot's vote sets
func (b *Ballots) ClearAll() {
	for i := range b.slots {
		b.Clear(i)
	}
}

// Forget drops every ballot voter has cast
func (b *Ballots) Forget(voter string) {
	for i := range b.slots {
		delete(b.slots[i].keep, voter)
		delete(b.slots[i].reroll, voter)
	}
}

// Evaluate decides slot idx against the quorum of the live peers. Ballots of voters that
// are not live do not count. Keep is checked first.
func (b *Ballots) Evaluate(idx int, live []models.Peer) Decision {
	if !models.ValidSlot(idx) {
		return DecisionNone
	}
	ids := make(map[string]struct{}, len(live))
	for _, p := range live {
		ids[p.ID] = struct{}{}
	}
	set := b.slots[idx]
	return Decide(countIn(set.keep, ids), countIn(set.reroll, ids), len(live))
}

// Decide maps ballot counts to a decision for a room of liveCount live peers
func Decide(keep, reroll, liveCount int) Decision {
	q := Quorum(liveCount)
	switch {
	case keep >= q:
		return DecisionLock
	case reroll >= q:
		return DecisionReroll
	default:
		return DecisionNone
	}
}

// Quorum is a strict majority of the live peers
func Quorum(liveCount int) int {
	if liveCount < 0 {
		liveCount = 0
	}
	return liveCount/2 + 1
}

func countIn(voters, live map[string]struct{}) int {
	n := 0
	for v := range voters {
		if _, ok := live[v]; ok {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
