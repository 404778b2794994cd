package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/partyspin/go/internal/config"
	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/mcdev12/partyspin/go/internal/party/draw"
	"github.com/mcdev12/partyspin/go/internal/party/events"
	"github.com/mcdev12/partyspin/go/internal/party/orchestrator"
	"github.com/mcdev12/partyspin/go/internal/party/relay"
	"github.com/mcdev12/partyspin/go/internal/party/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "party.rooms"

type collector struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *collector) handle(_ string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func startGateway(t *testing.T) (*Service, *relay.MemoryBus, *httptest.Server) {
	t.Helper()
	svc, bus, srv, _ := startStoppableGateway(t)
	return svc, bus, srv
}

// startStoppableGateway also returns a func that shuts the service down, closing every
// client connection
func startStoppableGateway(t *testing.T) (*Service, *relay.MemoryBus, *httptest.Server, func()) {
	t.Helper()
	bus := relay.NewMemoryBus()
	cfg := DefaultConfig()
	cfg.SubjectPrefix = prefix
	svc := NewService(cfg, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return svc.GetStats()["consumer_active"] == true
	}, time.Second, 5*time.Millisecond)
	return svc, bus, srv, cancel
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/party"
}

func dialRaw(t *testing.T, srv *httptest.Server, code string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?code="+code, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitConnections(t *testing.T, svc *Service, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return svc.GetStats()["total_connections"] == n
	}, 2*time.Second, 5*time.Millisecond)
}

func fixedDrawer() draw.Drawer {
	return draw.DrawerFunc(func(ctx context.Context, req draw.Request) (draw.Result, error) {
		return draw.Result{Slots: models.Triple{
			{ID: "pho", Name: "Pho"},
			{ID: "rolls", Name: "Spring Rolls"},
			{ID: "mochi", Name: "Mochi"},
		}}, nil
	})
}

func TestGateway_SessionsReplicateThroughWebSocket(t *testing.T) {
	_, _, srv := startGateway(t)
	ctx := context.Background()

	join := func(id string, creator bool) *session.Session {
		ch, err := relay.DialWebSocket(ctx, wsURL(srv), "ROOM1")
		require.NoError(t, err)
		cfg := session.DefaultConfig("ROOM1")
		cfg.ClientID = id
		cfg.Nickname = id
		cfg.Creator = creator
		s, err := session.New(cfg, ch, fixedDrawer())
		require.NoError(t, err)
		require.NoError(t, s.Join(ctx))
		t.Cleanup(func() { _ = s.Leave(context.Background()) })
		return s
	}

	host := join("host", true)
	guest := join("guest", false)

	require.Eventually(t, func() bool {
		return len(host.Snapshot().Peers) == 2 && guest.Snapshot().HostID == "host"
	}, 2*time.Second, 10*time.Millisecond)

	state, err := host.Spin(ctx, orchestrator.Request{Categories: []string{"dinner"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return guest.Snapshot().State.Summary == state.Summary
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Main: Pho | Side: Spring Rolls | Dessert: Mochi", guest.Snapshot().State.Summary)
}

func TestGateway_SessionRunEndsWhenGatewayGoesAway(t *testing.T) {
	svc, _, srv, shutdown := startStoppableGateway(t)
	ctx := context.Background()

	ch, err := relay.DialWebSocket(ctx, wsURL(srv), "ROOM1")
	require.NoError(t, err)
	cfg := session.DefaultConfig("ROOM1")
	cfg.Creator = true
	s, err := session.New(cfg, ch, fixedDrawer())
	require.NoError(t, err)
	require.NoError(t, s.Join(ctx))
	t.Cleanup(func() { _ = s.Leave(context.Background()) })
	waitConnections(t, svc, 1)

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	shutdown()

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, session.ErrDisconnected)
	case <-time.After(3 * time.Second):
		t.Fatal("Run kept going after the gateway closed the connection")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("session did not leave the room")
	}
	_, err = s.Spin(ctx, orchestrator.Request{})
	assert.ErrorIs(t, err, session.ErrLeft)
}

func TestGateway_DropsForeignRoomFrames(t *testing.T) {
	svc, bus, srv := startGateway(t)

	roomA, roomB := &collector{}, &collector{}
	_, err := bus.Subscribe(relay.RoomSubject(prefix, "A"), roomA.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(relay.RoomSubject(prefix, "B"), roomB.handle)
	require.NoError(t, err)

	conn := dialRaw(t, srv, "A")

	foreign, err := events.Encode("B", &events.BeatPayload{ClientID: "x"})
	require.NoError(t, err)
	own, err := events.Encode("A", &events.BeatPayload{ClientID: "x"})
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, foreign))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, own))

	// frames from one connection are handled in order
	require.Eventually(t, func() bool { return roomA.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, roomB.count())

	stats := svc.GetStats()
	assert.Equal(t, uint64(1), stats["frames_in"])
	assert.Equal(t, uint64(2), stats["frames_dropped"])
}

func TestGateway_FansOutOnlyToRoom(t *testing.T) {
	svc, bus, srv := startGateway(t)

	a1 := dialRaw(t, srv, "A")
	a2 := dialRaw(t, srv, "A")
	b := dialRaw(t, srv, "B")
	waitConnections(t, svc, 3)

	frame, err := events.Encode("A", &events.SyncRequestPayload{ClientID: "z"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), relay.RoomSubject(prefix, "A"), frame))

	for _, conn := range []*websocket.Conn{a1, a2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, got, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, string(frame), string(got))
	}

	require.NoError(t, b.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = b.ReadMessage()
	assert.Error(t, err, "room B must not receive room A frames")
}

func TestGateway_RejectsBadCodes(t *testing.T) {
	_, _, srv := startGateway(t)

	for _, query := range []string{"", "?code=", "?code=has%20space"} {
		resp, err := http.Get(srv.URL + "/ws/party" + query)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query %q", query)
	}
}

func TestGateway_HealthAndStats(t *testing.T) {
	svc, _, srv := startGateway(t)
	dialRaw(t, srv, "A")
	waitConnections(t, svc, 1)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Healthy)
	assert.True(t, status.BusConnected)
	assert.True(t, status.ConsumerActive)
	assert.Equal(t, 1, status.Connections)
	assert.Equal(t, 1, status.ActiveRooms)

	statsResp, err := http.Get(srv.URL + "/ws/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()

	var stats map[string]interface{}
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, float64(1), stats["total_connections"])
}

func TestGateway_UnhealthyWithoutConsumer(t *testing.T) {
	bus := relay.NewMemoryBus()
	svc := NewService(DefaultConfig(), bus)

	status := svc.Health(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Errors, "event consumer not active")
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"listed", []string{"https://party.example"}, "https://party.example", true},
		{"unlisted", []string{"https://party.example"}, "https://evil.example", false},
		{"no origin header", []string{"https://party.example"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws/party", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.NATS.SubjectPrefix = "custom.rooms"
	cfg.Gateway.PingInterval = 5 * time.Second

	got := ConfigFrom(cfg)
	assert.Equal(t, "custom.rooms", got.SubjectPrefix)
	assert.Equal(t, 5*time.Second, got.ConnectionConfig.PingInterval)
	assert.Equal(t, cfg.Gateway.MaxMessageSize, got.ConnectionConfig.MaxMessageSize)
}
