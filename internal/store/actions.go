package store

import "github.com/macapark/dashboard/internal/models"

// Action type names, used for logging and by subscribers that switch on Type.
const (
	TypeSetLot             = "SET_LOT"
	TypeUpdateSpot         = "UPDATE_SPOT"
	TypeSetSnapshot        = "SET_SNAPSHOT"
	TypeSetConnectionState = "SET_CONNECTION_STATE"
	TypeSetSettings        = "SET_SETTINGS"
	TypeSetError           = "SET_ERROR"
)

// Action is a typed state change. Payloads are not validated by the
// reducer; callers validate at their own boundary.
type Action interface {
	Type() string
}

// SetLot replaces the lot wholesale and clears any error.
type SetLot struct {
	Lot *models.LotDefinition
}

// UpdateSpot upserts the occupancy of one spot.
type UpdateSpot struct {
	SpotID   string
	Occupied bool
	TS       string
}

// SetSnapshot upserts every listed spot with the snapshot timestamp. Spots
// missing from the list keep their previous state unless Prune is set.
type SetSnapshot struct {
	Spots []models.SpotOccupancy
	TS    string
	Prune bool
}

// SetConnectionState records the live connection status verbatim.
type SetConnectionState struct {
	State models.ConnectionState
}

// SetSettings replaces the endpoint configuration wholesale.
type SetSettings struct {
	Settings models.ParkingSettings
}

// SetError sets the user-facing error, or clears it when Error is nil.
type SetError struct {
	Error *string
}

func (SetLot) Type() string             { return TypeSetLot }
func (UpdateSpot) Type() string         { return TypeUpdateSpot }
func (SetSnapshot) Type() string        { return TypeSetSnapshot }
func (SetConnectionState) Type() string { return TypeSetConnectionState }
func (SetSettings) Type() string        { return TypeSetSettings }
func (SetError) Type() string           { return TypeSetError }

// ErrorAction builds a SetError carrying msg.
func ErrorAction(msg string) SetError {
	return SetError{Error: &msg}
}

// ClearError builds a SetError that clears the error.
func ClearError() SetError {
	return SetError{}
}
