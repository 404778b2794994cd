// Package orchestrator produces new spin states on the host. It asks the external draw
// service for items, then merges the caller's locks back in so locked slots never change
// even if the service ignores the instruction.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/mcdev12/partyspin/go/internal/party/draw"
	"github.com/mcdev12/partyspin/go/internal/party/spin"
	"github.com/rs/zerolog/log"
)

// DefaultDrawTimeout bounds a single draw call
const DefaultDrawTimeout = 10 * time.Second

var (
	ErrDrawFailed  = errors.New("draw failed")
	ErrInvalidLock = errors.New("invalid locked slot")
)

// Request is a host's spin request
type Request struct {
	Locked      []models.LockedSlot `json:"locked"`
	Categories  []string            `json:"categories"`
	Constraints map[string]string   `json:"constraints,omitempty"`
	Powerups    []string            `json:"powerups,omitempty"`
}

// Orchestrator turns spin and reroll requests into new states
type Orchestrator struct {
	drawer  draw.Drawer
	timeout time.Duration
}

// New creates an orchestrator over drawer; a non-positive timeout uses DefaultDrawTimeout
func New(drawer draw.Drawer, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultDrawTimeout
	}
	return &Orchestrator{drawer: drawer, timeout: timeout}
}

// Spin draws every slot not named in req.Locked. Locked slots keep their dish and come
// back locked; all other locks are released. On error current is the state to keep.
func (o *Orchestrator) Spin(ctx context.Context, current spin.State, req Request, recent []string) (spin.State, error) {
	pinned, err := pinnedSlots(req.Locked)
	if err != nil {
		return current, err
	}

	drawn, err := o.draw(ctx, req, req.Locked, recent)
	if err != nil {
		return current, err
	}

	var locks [models.SlotCount]bool
	for idx := range pinned {
		locks[idx] = true
	}
	return merge(current, drawn, pinned, locks), nil
}

// Reroll redraws only slot idx by locking every other index for the draw. Locks of the
// other slots are preserved; the rerolled slot comes back unlocked.
func (o *Orchestrator) Reroll(ctx context.Context, current spin.State, idx int, req Request, recent []string) (spin.State, error) {
	if !models.ValidSlot(idx) {
		return current, fmt.Errorf("%w: index %d", ErrInvalidLock, idx)
	}

	mask := RerollMask(current, idx)
	drawn, err := o.draw(ctx, req, mask, recent)
	if err != nil {
		return current, err
	}

	pinned := make(map[int]string, len(mask))
	for _, l := range mask {
		pinned[l.Index] = l.DishID
	}
	locks := current.Locks
	locks[idx] = false
	return merge(current, drawn, pinned, locks), nil
}

// RerollMask locks every slot except target, pinning each to its current dish
func RerollMask(current spin.State, target int) []models.LockedSlot {
	mask := make([]models.LockedSlot, 0, models.SlotCount-1)
	for i := 0; i < models.SlotCount; i++ {
		if i == target {
			continue
		}
		id := ""
		if current.Slots[i] != nil {
			id = current.Slots[i].ID
		}
		mask = append(mask, models.LockedSlot{Index: i, DishID: id})
	}
	return mask
}

func (o *Orchestrator) draw(ctx context.Context, req Request, locked []models.LockedSlot, recent []string) (models.Triple, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := o.drawer.Draw(ctx, draw.Request{
		Categories:  req.Categories,
		Constraints: req.Constraints,
		Locked:      locked,
		Powerups:    req.Powerups,
		Recent:      recent,
	})
	if err != nil {
		log.Warn().Err(err).Int("locked", len(locked)).Msg("draw call failed")
		return models.Triple{}, fmt.Errorf("%w: %w", ErrDrawFailed, err)
	}
	return res.Slots, nil
}

func pinnedSlots(locked []models.LockedSlot) (map[int]string, error) {
	pinned := make(map[int]string, len(locked))
	for _, l := range locked {
		if !models.ValidSlot(l.Index) {
			return nil, fmt.Errorf("%w: index %d", ErrInvalidLock, l.Index)
		}
		if _, dup := pinned[l.Index]; dup {
			return nil, fmt.Errorf("%w: index %d locked twice", ErrInvalidLock, l.Index)
		}
		pinned[l.Index] = l.DishID
	}
	return pinned, nil
}

// merge takes pinned slots from what the host already holds and the rest from drawn
func merge(current spin.State, drawn models.Triple, pinned map[int]string, locks [models.SlotCount]bool) spin.State {
	var slots models.Triple
	for i := 0; i < models.SlotCount; i++ {
		id, ok := pinned[i]
		if !ok {
			slots[i] = drawn[i]
			continue
		}
		slots[i] = resolvePinned(id, current.Slots[i], drawn[i])
	}
	return spin.New(slots, locks)
}

func resolvePinned(id string, held, drawn *models.Dish) *models.Dish {
	switch {
	case id == "":
		return held
	case held != nil && held.ID == id:
		return held
	case drawn != nil && drawn.ID == id:
		return drawn
	default:
		return &models.Dish{ID: id}
	}
}
