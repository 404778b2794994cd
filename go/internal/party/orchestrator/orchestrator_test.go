package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/mcdev12/partyspin/go/internal/party/draw"
	"github.com/mcdev12/partyspin/go/internal/party/spin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dish(id string) *models.Dish { return &models.Dish{ID: id, Name: "dish " + id} }

// fakeDrawer returns fixed slots, honouring the locked mask the way a well-behaved
// service would, and records every request.
type fakeDrawer struct {
	slots    models.Triple
	err      error
	requests []draw.Request
}

func (f *fakeDrawer) Draw(_ context.Context, req draw.Request) (draw.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return draw.Result{}, f.err
	}
	return draw.Result{Slots: f.slots.Clone()}, nil
}

func TestSpin_DrawsAllSlots(t *testing.T) {
	d := &fakeDrawer{slots: models.Triple{dish("a"), dish("b"), dish("c")}}
	o := New(d, time.Second)

	st, err := o.Spin(context.Background(), spin.State{}, Request{Categories: []string{"thai"}}, []string{"old"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, st.DishIDs())
	assert.Equal(t, [models.SlotCount]bool{}, st.Locks)
	assert.NotEmpty(t, st.Summary)

	require.Len(t, d.requests, 1)
	assert.Equal(t, []string{"thai"}, d.requests[0].Categories)
	assert.Equal(t, []string{"old"}, d.requests[0].Recent)
}

func TestSpin_MergesForcedLocks(t *testing.T) {
	current := spin.New(models.Triple{dish("keep-me"), dish("b0"), dish("c0")}, [models.SlotCount]bool{true})
	// the service ignores the lock and returns something else for slot 0
	d := &fakeDrawer{slots: models.Triple{dish("intruder"), dish("b1"), dish("c1")}}
	o := New(d, time.Second)

	st, err := o.Spin(context.Background(), current, Request{Locked: []models.LockedSlot{{Index: 0, DishID: "keep-me"}}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "keep-me", st.Slots[0].ID)
	assert.Equal(t, "dish keep-me", st.Slots[0].Name, "held dish details survive")
	assert.Equal(t, "b1", st.Slots[1].ID)
	assert.Equal(t, "c1", st.Slots[2].ID)
	assert.Equal(t, [models.SlotCount]bool{true, false, false}, st.Locks)
	assert.Equal(t, []models.LockedSlot{{Index: 0, DishID: "keep-me"}}, d.requests[0].Locked)
}

func TestSpin_LockedDishUnknownLocally(t *testing.T) {
	d := &fakeDrawer{slots: models.Triple{nil, dish("b"), dish("c")}}
	st, err := New(d, time.Second).Spin(context.Background(), spin.State{}, Request{Locked: []models.LockedSlot{{Index: 0, DishID: "x"}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, &models.Dish{ID: "x"}, st.Slots[0])
}

func TestSpin_RejectsInvalidLocks(t *testing.T) {
	d := &fakeDrawer{}
	o := New(d, time.Second)
	current := spin.New(models.Triple{dish("a")}, [models.SlotCount]bool{})

	for _, locked := range [][]models.LockedSlot{
		{{Index: 3, DishID: "a"}},
		{{Index: 0, DishID: "a"}, {Index: 0, DishID: "a"}},
	} {
		st, err := o.Spin(context.Background(), current, Request{Locked: locked}, nil)
		assert.ErrorIs(t, err, ErrInvalidLock)
		assert.Equal(t, current, st)
	}
	assert.Empty(t, d.requests, "no draw for an invalid request")
}

func TestSpin_DrawFailureKeepsState(t *testing.T) {
	current := spin.New(models.Triple{dish("a"), dish("b"), dish("c")}, [models.SlotCount]bool{})
	d := &fakeDrawer{err: errors.New("service down")}

	st, err := New(d, time.Second).Spin(context.Background(), current, Request{}, nil)
	assert.ErrorIs(t, err, ErrDrawFailed)
	assert.Equal(t, current, st)
}

func TestSpin_TimesOut(t *testing.T) {
	slow := draw.DrawerFunc(func(ctx context.Context, _ draw.Request) (draw.Result, error) {
		<-ctx.Done()
		return draw.Result{}, ctx.Err()
	})

	_, err := New(slow, 20*time.Millisecond).Spin(context.Background(), spin.State{}, Request{}, nil)
	assert.ErrorIs(t, err, ErrDrawFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReroll_OnlyTargetChanges(t *testing.T) {
	current := spin.New(models.Triple{dish("a"), dish("b"), dish("c")}, [models.SlotCount]bool{true, false, false})
	d := &fakeDrawer{slots: models.Triple{dish("x"), dish("y"), dish("z")}}

	st, err := New(d, time.Second).Reroll(context.Background(), current, 1, Request{}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "y", "c"}, st.DishIDs())
	assert.Equal(t, [models.SlotCount]bool{true, false, false}, st.Locks)
	require.Len(t, d.requests, 1)
	assert.Equal(t, []models.LockedSlot{{Index: 0, DishID: "a"}, {Index: 2, DishID: "c"}}, d.requests[0].Locked)
}

func TestReroll_UndrawnNeighboursStayEmpty(t *testing.T) {
	current := spin.New(models.Triple{nil, dish("b"), nil}, [models.SlotCount]bool{})
	d := &fakeDrawer{slots: models.Triple{dish("x"), dish("y"), dish("z")}}

	st, err := New(d, time.Second).Reroll(context.Background(), current, 1, Request{}, nil)
	require.NoError(t, err)
	assert.Nil(t, st.Slots[0])
	assert.Equal(t, "y", st.Slots[1].ID)
	assert.Nil(t, st.Slots[2])
}

func TestReroll_InvalidIndex(t *testing.T) {
	_, err := New(&fakeDrawer{}, time.Second).Reroll(context.Background(), spin.State{}, 5, Request{}, nil)
	assert.ErrorIs(t, err, ErrInvalidLock)
}

func TestRerollMask(t *testing.T) {
	current := spin.New(models.Triple{dish("a"), nil, dish("c")}, [models.SlotCount]bool{})
	assert.Equal(t, []models.LockedSlot{{Index: 1, DishID: ""}, {Index: 2, DishID: "c"}}, RerollMask(current, 0))
}
