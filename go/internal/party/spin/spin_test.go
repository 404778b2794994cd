package spin

import (
	"testing"
	"time"

	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pho   = &models.Dish{ID: "d-pho", Name: "Pho"}
	rolls = &models.Dish{ID: "d-rolls", Name: "Spring Rolls"}
	mochi = &models.Dish{ID: "d-mochi", Name: "Mochi"}
	curry = &models.Dish{ID: "d-curry", Name: "Curry"}
)

func TestSummarize_OrderStable(t *testing.T) {
	s := Summarize(models.Triple{pho, nil, mochi}, [models.SlotCount]bool{true, false, false})
	assert.Equal(t, "Main: Pho [locked] | Side: - | Dessert: Mochi", s)

	// same contents produce the same digest
	assert.Equal(t, s, Summarize(models.Triple{pho, nil, mochi}, [models.SlotCount]bool{true, false, false}))
	// a lock change changes the digest
	assert.NotEqual(t, s, Summarize(models.Triple{pho, nil, mochi}, [models.SlotCount]bool{}))
}

func TestState_Helpers(t *testing.T) {
	assert.True(t, State{}.IsEmpty())

	st := New(models.Triple{pho, rolls, nil}, [models.SlotCount]bool{false, true, true})
	assert.False(t, st.IsEmpty())
	// the undrawn slot is locked but has nothing to pin
	assert.Equal(t, []models.LockedSlot{{Index: 1, DishID: "d-rolls"}}, st.LockedSlots())
	assert.Equal(t, []string{"d-pho", "d-rolls"}, st.DishIDs())

	locked := st.WithLock(0)
	assert.True(t, locked.Locks[0])
	assert.False(t, st.Locks[0], "WithLock must not mutate the receiver")
	assert.NotEqual(t, st.Summary, locked.Summary)
}

func TestState_PayloadRoundTrip(t *testing.T) {
	st := New(models.Triple{pho, rolls, mochi}, [models.SlotCount]bool{true, false, false})
	back := FromPayload(st.Payload())
	assert.Equal(t, st, back)

	p := st.Payload()
	p.Summary = ""
	assert.Equal(t, st.Summary, FromPayload(p).Summary)
}

func TestState_DoesNotAliasDishes(t *testing.T) {
	dish := &models.Dish{ID: "x", Name: "X"}
	st := New(models.Triple{dish}, [models.SlotCount]bool{})
	dish.Name = "changed"
	assert.Equal(t, "X", st.Slots[0].Name)
}

func TestReplica_ApplyIsIdempotent(t *testing.T) {
	r := NewReplica(DefaultHistorySize)
	at := time.Now()
	st := New(models.Triple{pho, rolls, mochi}, [models.SlotCount]bool{})

	assert.True(t, r.Apply(st, at))
	assert.False(t, r.Apply(st, at.Add(time.Second)), "echo must not duplicate history")

	assert.Equal(t, st, r.State())
	require.Len(t, r.History(), 1)
	assert.Equal(t, st.Summary, r.History()[0].Summary)
}

func TestReplica_LastWriterWins(t *testing.T) {
	r := NewReplica(DefaultHistorySize)
	a := New(models.Triple{pho, rolls, mochi}, [models.SlotCount]bool{})
	b := New(models.Triple{curry, nil, nil}, [models.SlotCount]bool{true})

	r.Apply(a, time.Now())
	r.Apply(b, time.Now())

	got := r.State()
	assert.Equal(t, b, got)
	assert.Nil(t, got.Slots[1], "no merge with the previous state")
	assert.Len(t, r.History(), 2)
}

func TestReplica_HistoryBounded(t *testing.T) {
	r := NewReplica(2)
	dishes := []*models.Dish{pho, rolls, mochi, curry}
	for _, d := range dishes {
		r.Apply(New(models.Triple{d}, [models.SlotCount]bool{}), time.Now())
	}
	h := r.History()
	require.Len(t, h, 2)
	assert.Equal(t, "Main: Mochi | Side: - | Dessert: -", h[0].Summary)
	assert.Equal(t, []string{"d-curry", "d-mochi"}, r.RecentDishIDs())
}

func TestReplica_EmptySummaryNotLogged(t *testing.T) {
	r := NewReplica(0)
	assert.False(t, r.Apply(State{}, time.Now()))
	assert.Empty(t, r.History())
}
