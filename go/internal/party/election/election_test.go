package election

import (
	"math/rand"
	"testing"

	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestHost(t *testing.T) {
	tests := []struct {
		name   string
		live   []models.Peer
		wantID string
		wantOK bool
	}{
		{"empty live set", nil, "", false},
		{"single peer", []models.Peer{{ID: "b"}}, "b", true},
		{"lowest id without creator", []models.Peer{{ID: "c"}, {ID: "a"}, {ID: "b"}}, "a", true},
		{"creator wins over lower id", []models.Peer{{ID: "a"}, {ID: "m", IsCreator: true}}, "m", true},
		{"two creators tie-break by id", []models.Peer{{ID: "y", IsCreator: true}, {ID: "x", IsCreator: true}, {ID: "a"}}, "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, ok := Host(tt.live)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, host.ID)
			assert.Equal(t, tt.wantID, HostID(tt.live))
		})
	}
}

func TestHost_IndependentOfOrder(t *testing.T) {
	live := []models.Peer{{ID: "p3"}, {ID: "p1"}, {ID: "p9", IsCreator: true}, {ID: "p2"}, {ID: "p0"}}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]models.Peer(nil), live...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, "p9", HostID(shuffled))
	}
}

func TestHost_MigratesWhenHostLeavesLiveSet(t *testing.T) {
	live := []models.Peer{{ID: "creator", IsCreator: true}, {ID: "b"}, {ID: "c"}}
	assert.True(t, IsHost(live, "creator"))
	assert.True(t, IsHost(live[1:], "b"))
	assert.False(t, IsHost(nil, ""))
}
