package store

import "github.com/macapark/dashboard/internal/models"

// ChangedSpots returns the spots whose occupancy action changed, in the
// order the action lists them. A spot seen for the first time counts as
// changed; a repeated value with a new timestamp does not.
func ChangedSpots(action Action, prev, next State) []models.SpotState {
	var ids []string
	switch a := action.(type) {
	case UpdateSpot:
		ids = []string{a.SpotID}
	case SetSnapshot:
		ids = make([]string, 0, len(a.Spots))
		for _, s := range a.Spots {
			ids = append(ids, s.SpotID)
		}
	default:
		return nil
	}

	seen := make(map[string]bool, len(ids))
	var out []models.SpotState
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		cur, ok := next.SpotStates[id]
		if !ok {
			continue
		}
		if old, had := prev.SpotStates[id]; had && old.Occupied == cur.Occupied {
			continue
		}
		out = append(out, cur)
	}
	return out
}

// Counts summarizes the occupancy of the lot's spots. Spots without a
// state are unknown.
type Counts struct {
	Total    int `json:"total" msgpack:"total"`
	Occupied int `json:"occupied" msgpack:"occupied"`
	Free     int `json:"free" msgpack:"free"`
	Unknown  int `json:"unknown" msgpack:"unknown"`
}

// CountOccupancy tallies s.Lot against s.SpotStates.
func CountOccupancy(s State) Counts {
	var c Counts
	if s.Lot == nil {
		return c
	}
	for _, spot := range s.Lot.Spots {
		c.Total++
		st, ok := s.SpotStates[spot.SpotID]
		switch {
		case !ok:
			c.Unknown++
		case st.Occupied:
			c.Occupied++
		default:
			c.Free++
		}
	}
	return c
}
