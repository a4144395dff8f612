package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macapark/dashboard/internal/models"
)

func TestChangedSpots(t *testing.T) {
	prev := State{SpotStates: map[string]models.SpotState{
		"A1": {SpotID: "A1", Occupied: false},
		"A2": {SpotID: "A2", Occupied: true},
	}}

	snap := SetSnapshot{TS: "t", Spots: []models.SpotOccupancy{
		{SpotID: "A1", Occupied: false},
		{SpotID: "A2", Occupied: false},
		{SpotID: "A3", Occupied: true},
		{SpotID: "A3", Occupied: true},
	}}
	changed := ChangedSpots(snap, prev, Reduce(prev, snap))
	assert.Equal(t, []models.SpotState{
		{SpotID: "A2", Occupied: false, LastUpdated: "t"},
		{SpotID: "A3", Occupied: true, LastUpdated: "t"},
	}, changed)

	same := UpdateSpot{SpotID: "A2", Occupied: true, TS: "t2"}
	assert.Empty(t, ChangedSpots(same, prev, Reduce(prev, same)))

	assert.Nil(t, ChangedSpots(SetError{}, prev, prev))
}

func TestCountOccupancy(t *testing.T) {
	s := State{
		Lot: &models.LotDefinition{Spots: []models.SpotDefinition{
			{SpotID: "A1"}, {SpotID: "A2"}, {SpotID: "A3"},
		}},
		SpotStates: map[string]models.SpotState{
			"A1": {SpotID: "A1", Occupied: true},
			"A2": {SpotID: "A2", Occupied: false},
			"ZZ": {SpotID: "ZZ", Occupied: true},
		},
	}
	assert.Equal(t, Counts{Total: 3, Occupied: 1, Free: 1, Unknown: 1}, CountOccupancy(s))
	assert.Equal(t, Counts{}, CountOccupancy(State{}))
}
