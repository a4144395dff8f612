package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macapark/dashboard/internal/clock"
	"github.com/macapark/dashboard/internal/livesync"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/parser"
	"github.com/macapark/dashboard/internal/store"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// pipeConn blocks on reads until closed.
type pipeConn struct {
	closed chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn { return &pipeConn{closed: make(chan struct{})} }

func (c *pipeConn) ReadMessage() ([]byte, error) {
	<-c.closed
	return nil, errors.New("closed")
}

func (c *pipeConn) WriteMessage([]byte) error { return nil }

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type dialerFunc func(ctx context.Context, url string) (livesync.Conn, error)

func (f dialerFunc) Dial(ctx context.Context, url string) (livesync.Conn, error) { return f(ctx, url) }

func lotServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/lot":
			w.Write([]byte(`[{"lot_id":"lot-1","name":"North","spots":[]}]`))
		case "/lot/lot-1/occupancy":
			w.Write([]byte(`[{"spot_id":"A1","occupied":true}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, dialer livesync.Dialer) (*Provider, *store.Store) {
	t.Helper()
	s := store.New()
	p := New(s, Options{
		InitialBackoff: time.Second,
		MaxBackoff:     4 * time.Second,
		Clock:          clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		Dialer:         dialer,
	})
	t.Cleanup(p.Stop)
	return p, s
}

func TestProvider_NotConfigured(t *testing.T) {
	p, s := newProvider(t, nil)
	p.Start(context.Background(), models.ParkingSettings{})

	state := s.Snapshot()
	assert.Nil(t, state.Lot)
	assert.Equal(t, ErrMsgNotConfigured, state.ErrorString())
	assert.Nil(t, p.REST())

	_, ok := p.LiveStats()
	assert.False(t, ok)
	assert.ErrorIs(t, p.Reconnect(), livesync.ErrNoURL)
}

func TestProvider_LoadsLot(t *testing.T) {
	srv := lotServer(t, http.StatusOK)
	p, s := newProvider(t, nil)
	p.Start(context.Background(), models.ParkingSettings{RestBaseURL: srv.URL})

	state := s.Snapshot()
	require.NotNil(t, state.Lot)
	assert.Equal(t, "lot-1", state.Lot.LotID)
	assert.Empty(t, state.ErrorString())
	assert.Equal(t, srv.URL, state.Settings.RestBaseURL)
}

func TestProvider_BackendDown(t *testing.T) {
	srv := lotServer(t, http.StatusInternalServerError)
	p, s := newProvider(t, nil)
	p.Start(context.Background(), models.ParkingSettings{RestBaseURL: srv.URL})

	state := s.Snapshot()
	assert.Nil(t, state.Lot)
	assert.Equal(t, ErrMsgNotConnected, state.ErrorString())
}

func TestProvider_LiveClientLifecycle(t *testing.T) {
	conn := newPipeConn()
	dialer := dialerFunc(func(ctx context.Context, url string) (livesync.Conn, error) {
		return conn, nil
	})
	p, s := newProvider(t, dialer)
	p.Start(context.Background(), models.ParkingSettings{WSURL: "ws://parking.test/ws"})

	require.Eventually(t, func() bool {
		return s.Snapshot().ConnectionState == models.ConnectionConnected
	}, waitFor, tick)

	stats, ok := p.LiveStats()
	require.True(t, ok)
	assert.Equal(t, "ws://parking.test/ws", stats.URL)
	assert.True(t, stats.Running)

	p.Reconfigure(models.ParkingSettings{})
	assert.Equal(t, models.ConnectionDisconnected, s.Snapshot().ConnectionState)
	_, ok = p.LiveStats()
	assert.False(t, ok)
}

// connTracker hands out pipeConns and counts the ones still open.
type connTracker struct {
	mu    sync.Mutex
	conns []*pipeConn
}

func (tr *connTracker) Dial(ctx context.Context, url string) (livesync.Conn, error) {
	c := newPipeConn()
	tr.mu.Lock()
	tr.conns = append(tr.conns, c)
	tr.mu.Unlock()
	return c, nil
}

func (tr *connTracker) open() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	n := 0
	for _, c := range tr.conns {
		select {
		case <-c.closed:
		default:
			n++
		}
	}
	return n
}

func TestProvider_ConcurrentLifecycleKeepsOneClient(t *testing.T) {
	tracker := &connTracker{}
	p, s := newProvider(t, tracker)
	p.Start(context.Background(), models.ParkingSettings{WSURL: "ws://parking.test/ws"})

	settings := models.ParkingSettings{WSURL: "ws://parking.test/ws"}
	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Reconfigure(settings)
			}()
		}
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = p.Reconnect()
			}()
		}
		wg.Wait()
	}

	require.Eventually(t, func() bool { return tracker.open() == 1 }, waitFor, tick,
		"open connections: %d", tracker.open())
	require.Eventually(t, func() bool {
		return s.Snapshot().ConnectionState == models.ConnectionConnected
	}, waitFor, tick)

	p.Stop()
	require.Eventually(t, func() bool { return tracker.open() == 0 }, waitFor, tick)
	assert.Equal(t, models.ConnectionDisconnected, s.Snapshot().ConnectionState)
	_, ok := p.LiveStats()
	assert.False(t, ok)
}

func TestProvider_ReconfigureSwapsREST(t *testing.T) {
	down := lotServer(t, http.StatusBadGateway)
	up := lotServer(t, http.StatusOK)
	p, s := newProvider(t, nil)

	p.Start(context.Background(), models.ParkingSettings{RestBaseURL: down.URL})
	assert.Equal(t, ErrMsgNotConnected, s.Snapshot().ErrorString())

	p.Reconfigure(models.ParkingSettings{RestBaseURL: up.URL})
	state := s.Snapshot()
	require.NotNil(t, state.Lot)
	assert.Empty(t, state.ErrorString())
	assert.Equal(t, up.URL, p.REST().BaseURL())
}

func TestProvider_PushLotRequiresBackend(t *testing.T) {
	p, _ := newProvider(t, nil)
	p.Start(context.Background(), models.ParkingSettings{})
	_, err := p.PushLot(context.Background(), "token", DemoLot())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDemoLot(t *testing.T) {
	lot := DemoLot()
	require.NoError(t, parser.ValidateLot(lot))
	assert.Len(t, lot.Spots, 21)
	assert.Len(t, lot.Entrances, 2)

	counts := map[models.SpotType]int{}
	for _, sp := range lot.Spots {
		counts[sp.Type]++
	}
	assert.Equal(t, 3, counts[models.SpotTypeAccessible])
	assert.Equal(t, 4, counts[models.SpotTypeEV])

	lot.Spots[0].SpotID = "changed"
	assert.Equal(t, "A1", DemoLot().Spots[0].SpotID)
}
