package livesync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
	"github.com/macapark/dashboard/internal/testutil"
)

func TestClient_WebSocketEndToEnd(t *testing.T) {
	backend := testutil.NewParkingBackend(t, nil)
	backend.SetOccupancy([]models.SpotOccupancy{{SpotID: "A1", Occupied: true}})

	s := store.New()
	client := NewClient(s, ClientConfig{
		URL:            backend.WSURL(),
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
	})
	t.Cleanup(client.Stop)
	require.NoError(t, client.Start(context.Background()))

	require.Eventually(t, func() bool {
		st, ok := s.Snapshot().SpotStates["A1"]
		return ok && st.Occupied
	}, waitFor, tick, "snapshot after connect")
	assert.Equal(t, models.ConnectionConnected, s.Snapshot().ConnectionState)

	require.NoError(t, backend.PushJSON(map[string]any{
		"type": "spot_update", "spot_id": "A1", "occupied": false, "ts": 1700000000,
	}))
	require.Eventually(t, func() bool {
		return s.Snapshot().SpotStates["A1"] == models.SpotState{SpotID: "A1", LastUpdated: "1700000000"}
	}, waitFor, tick)

	backend.DropConnections()
	require.Eventually(t, func() bool {
		return backend.SnapshotRequests() == 2 && s.Snapshot().ConnectionState == models.ConnectionConnected
	}, waitFor, tick, "reconnect after the server drops the connection")
	assert.GreaterOrEqual(t, client.Stats().Successes, int64(2))

	client.Stop()
	assert.Equal(t, models.ConnectionDisconnected, s.Snapshot().ConnectionState)
	require.Eventually(t, func() bool { return backend.Connections() == 0 }, waitFor, tick)
}

func TestWebSocketDialer_Refused(t *testing.T) {
	backend := testutil.NewParkingBackend(t, nil)
	url := backend.WSURL()
	backend.Close()

	_, err := WebSocketDialer{HandshakeTimeout: time.Second}.Dial(context.Background(), url)
	assert.Error(t, err)
}
