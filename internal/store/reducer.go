// Package store holds the single application state of the dashboard: the
// lot definition, per-spot occupancy, connection status, settings and the
// user-facing error. State changes only through Reduce.
package store

import "github.com/macapark/dashboard/internal/models"

// State is an immutable view of the application. Maps inside a State are
// never written after the State is published; Reduce copies on write.
type State struct {
	Lot             *models.LotDefinition
	SpotStates      map[string]models.SpotState
	ConnectionState models.ConnectionState
	Settings        models.ParkingSettings
	Error           *string

	// LotVersion and OccupancyVersion increase on every lot or occupancy
	// change and key derived computations such as guidance.
	LotVersion       uint64
	OccupancyVersion uint64
}

// InitialState returns the state of a freshly started dashboard.
func InitialState() State {
	return State{
		SpotStates:      make(map[string]models.SpotState),
		ConnectionState: models.ConnectionDisconnected,
	}
}

// Reduce applies action to state and returns the new state. It is pure:
// the input state is never modified. Unknown actions return state as is.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case SetLot:
		state.Lot = a.Lot
		state.Error = nil
		state.LotVersion++
		return state

	case UpdateSpot:
		next := copyStates(state.SpotStates, 1)
		next[a.SpotID] = models.SpotState{
			SpotID:      a.SpotID,
			Occupied:    a.Occupied,
			LastUpdated: a.TS,
		}
		state.SpotStates = next
		state.OccupancyVersion++
		return state

	case SetSnapshot:
		var next map[string]models.SpotState
		if a.Prune {
			next = make(map[string]models.SpotState, len(a.Spots))
		} else {
			next = copyStates(state.SpotStates, len(a.Spots))
		}
		for _, s := range a.Spots {
			next[s.SpotID] = models.SpotState{
				SpotID:      s.SpotID,
				Occupied:    s.Occupied,
				LastUpdated: a.TS,
			}
		}
		state.SpotStates = next
		state.OccupancyVersion++
		return state

	case SetConnectionState:
		state.ConnectionState = a.State
		return state

	case SetSettings:
		state.Settings = a.Settings
		return state

	case SetError:
		state.Error = a.Error
		return state
	}
	return state
}

func copyStates(src map[string]models.SpotState, extra int) map[string]models.SpotState {
	dst := make(map[string]models.SpotState, len(src)+extra)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ErrorString returns the current error or "" when none is set.
func (s State) ErrorString() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}
