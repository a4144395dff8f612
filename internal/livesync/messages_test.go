package livesync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

func TestDecodeFrame_SpotUpdate(t *testing.T) {
	action, err := DecodeFrame([]byte(`{"type":"spot_update","spot_id":"A1","occupied":true,"ts":"2025-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, store.UpdateSpot{SpotID: "A1", Occupied: true, TS: "2025-01-01T00:00:00Z"}, action)
}

func TestDecodeFrame_NumericTimestamp(t *testing.T) {
	action, err := DecodeFrame([]byte(`{"type":"spot_update","spot_id":"A1","occupied":false,"ts":1735689600}`))
	require.NoError(t, err)
	assert.Equal(t, "1735689600", action.(store.UpdateSpot).TS)
}

func TestDecodeFrame_Snapshot(t *testing.T) {
	action, err := DecodeFrame([]byte(`{"type":"snapshot","ts":"t1","spots":[{"spot_id":"A1","occupied":true},{"spot_id":"A2","occupied":false}]}`))
	require.NoError(t, err)

	snap, ok := action.(store.SetSnapshot)
	require.True(t, ok)
	assert.Equal(t, "t1", snap.TS)
	assert.Equal(t, []models.SpotOccupancy{
		{SpotID: "A1", Occupied: true},
		{SpotID: "A2", Occupied: false},
	}, snap.Spots)
}

func TestDecodeFrame_EmptySnapshot(t *testing.T) {
	action, err := DecodeFrame([]byte(`{"type":"snapshot","spots":[]}`))
	require.NoError(t, err)
	assert.Empty(t, action.(store.SetSnapshot).Spots)
}

func TestDecodeFrame_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{"invalid json", `{"type":"spot_update",`, ErrMalformed},
		{"not an object", `[1,2,3]`, ErrMalformed},
		{"missing type", `{"spot_id":"A1","occupied":true}`, ErrUnknownType},
		{"unknown type", `{"type":"hello"}`, ErrUnknownType},
		{"occupied as string", `{"type":"spot_update","spot_id":"A1","occupied":"yes"}`, ErrMalformed},
		{"spot_id as number", `{"type":"spot_update","spot_id":7,"occupied":true}`, ErrMalformed},
		{"missing occupied", `{"type":"spot_update","spot_id":"A1"}`, ErrMalformed},
		{"ts as bool", `{"type":"spot_update","spot_id":"A1","occupied":true,"ts":true}`, ErrMalformed},
		{"snapshot without spots", `{"type":"snapshot","ts":"t"}`, ErrMalformed},
		{"snapshot spots not a list", `{"type":"snapshot","spots":{}}`, ErrMalformed},
		{"incomplete snapshot entry", `{"type":"snapshot","spots":[{"spot_id":"A1"}]}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := DecodeFrame([]byte(tt.frame))
			assert.Nil(t, action)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestGetSnapshotFrame(t *testing.T) {
	assert.JSONEq(t, `{"type":"get_snapshot"}`, string(GetSnapshotFrame()))
	typ, err := DecodeRequest(GetSnapshotFrame())
	require.NoError(t, err)
	assert.Equal(t, TypeGetSnapshot, typ)
}
