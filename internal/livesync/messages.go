package livesync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

// Push protocol message types.
const (
	TypeSpotUpdate  = "spot_update"
	TypeSnapshot    = "snapshot"
	TypeGetSnapshot = "get_snapshot"
	TypeConnection  = "connection"
	TypePing        = "ping"
	TypePong        = "pong"
)

var (
	// ErrMalformed marks a frame that is not valid JSON or has fields of
	// the wrong type.
	ErrMalformed = errors.New("malformed frame")
	// ErrUnknownType marks a well-formed frame with a missing or
	// unrecognized type.
	ErrUnknownType = errors.New("unknown frame type")
)

// SpotUpdateMessage reports a single spot change.
type SpotUpdateMessage struct {
	Type     string `json:"type"`
	SpotID   string `json:"spot_id"`
	Occupied bool   `json:"occupied"`
	TS       string `json:"ts"`
}

// SnapshotMessage lists the occupancy of many spots at one instant.
type SnapshotMessage struct {
	Type  string                 `json:"type"`
	Spots []models.SpotOccupancy `json:"spots"`
	TS    string                 `json:"ts"`
}

// ConnectionMessage carries the upstream connection state to downstream
// clients.
type ConnectionMessage struct {
	Type  string                 `json:"type"`
	State models.ConnectionState `json:"state"`
}

// RequestMessage is a bare client request such as get_snapshot or ping.
type RequestMessage struct {
	Type string `json:"type"`
}

type inboundFrame struct {
	Type     string          `json:"type"`
	SpotID   *string         `json:"spot_id"`
	Occupied *bool           `json:"occupied"`
	TS       json.RawMessage `json:"ts"`
	Spots    *[]inboundSpot  `json:"spots"`
}

type inboundSpot struct {
	SpotID   *string `json:"spot_id"`
	Occupied *bool   `json:"occupied"`
}

// DecodeFrame turns an upstream frame into a store action. Frames that are
// not exactly a spot_update or snapshot return an error wrapping
// ErrMalformed or ErrUnknownType; callers drop them.
func DecodeFrame(data []byte) (store.Action, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch f.Type {
	case TypeSpotUpdate:
		if f.SpotID == nil || f.Occupied == nil {
			return nil, fmt.Errorf("%w: spot_update needs spot_id and occupied", ErrMalformed)
		}
		ts, err := decodeTimestamp(f.TS)
		if err != nil {
			return nil, err
		}
		return store.UpdateSpot{SpotID: *f.SpotID, Occupied: *f.Occupied, TS: ts}, nil

	case TypeSnapshot:
		if f.Spots == nil {
			return nil, fmt.Errorf("%w: snapshot needs spots", ErrMalformed)
		}
		ts, err := decodeTimestamp(f.TS)
		if err != nil {
			return nil, err
		}
		spots := make([]models.SpotOccupancy, 0, len(*f.Spots))
		for i, s := range *f.Spots {
			if s.SpotID == nil || s.Occupied == nil {
				return nil, fmt.Errorf("%w: snapshot entry %d incomplete", ErrMalformed, i)
			}
			spots = append(spots, models.SpotOccupancy{SpotID: *s.SpotID, Occupied: *s.Occupied})
		}
		return store.SetSnapshot{Spots: spots, TS: ts}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnknownType)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
}

// decodeTimestamp accepts a string or a number; both are kept as text.
// A missing or null ts yields "".
func decodeTimestamp(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return n.String(), nil
		}
	}
	return "", fmt.Errorf("%w: ts must be a string or number", ErrMalformed)
}

// GetSnapshotFrame is the request sent after every successful connection.
func GetSnapshotFrame() []byte {
	b, _ := json.Marshal(RequestMessage{Type: TypeGetSnapshot})
	return b
}

// DecodeRequest reads the type of a downstream client request.
func DecodeRequest(data []byte) (string, error) {
	var r RequestMessage
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrUnknownType)
	}
	return r.Type, nil
}
