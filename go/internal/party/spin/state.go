package spin

import (
	"strings"

	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/mcdev12/partyspin/go/internal/party/events"
)

// State is the shared spin of a room: three fixed slots, their locks and a digest
type State struct {
	Slots   models.Triple
	Locks   [models.SlotCount]bool
	Summary string
}

// New builds a state and derives its summary
func New(slots models.Triple, locks [models.SlotCount]bool) State {
	return State{Slots: slots.Clone(), Locks: locks, Summary: Summarize(slots, locks)}
}

// FromPayload converts a replicated spin_result into a state. The sender's summary is
// kept verbatim since it is the dedupe key; it is only derived when missing.
func FromPayload(p *events.SpinResultPayload) State {
	s := State{Slots: p.Slots.Clone(), Locks: p.Locks, Summary: p.Summary}
	if s.Summary == "" {
		s.Summary = Summarize(s.Slots, s.Locks)
	}
	return s
}

// Payload converts the state into its wire form
func (s State) Payload() *events.SpinResultPayload {
	return &events.SpinResultPayload{Slots: s.Slots.Clone(), Locks: s.Locks, Summary: s.Summary}
}

// IsEmpty reports whether no slot has been drawn yet
func (s State) IsEmpty() bool {
	for _, d := range s.Slots {
		if d != nil {
			return false
		}
	}
	return true
}

// WithLock returns a copy of the state with slot idx locked
func (s State) WithLock(idx int) State {
	locks := s.Locks
	locks[idx] = true
	return New(s.Slots, locks)
}

// LockedSlots lists the locked, drawn slots
func (s State) LockedSlots() []models.LockedSlot {
	var out []models.LockedSlot
	for i, locked := range s.Locks {
		if locked && s.Slots[i] != nil {
			out = append(out, models.LockedSlot{Index: i, DishID: s.Slots[i].ID})
		}
	}
	return out
}

// DishIDs returns the ids of drawn slots in slot order
func (s State) DishIDs() []string {
	var out []string
	for _, d := range s.Slots {
		if d != nil {
			out = append(out, d.ID)
		}
	}
	return out
}

// Summarize renders an order-stable, human-readable digest of slots and locks
func Summarize(slots models.Triple, locks [models.SlotCount]bool) string {
	parts := make([]string, models.SlotCount)
	for i := range slots {
		name := "-"
		if slots[i] != nil {
			name = slots[i].Name
			if name == "" {
				name = slots[i].ID
			}
		}
		part := models.SlotLabels[i] + ": " + name
		if locks[i] {
			part += " [locked]"
		}
		parts[i] = part
	}
	return strings.Join(parts, " | ")
}
