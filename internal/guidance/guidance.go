// Package guidance recommends open parking spots near an entrance and
// derives a walking path to the best one. Everything here is a pure
// function of its inputs.
package guidance

import (
	"fmt"
	"sort"

	"github.com/macapark/dashboard/internal/geometry"
	"github.com/macapark/dashboard/internal/models"
)

// MaxRecommendations is the number of spots returned at most.
const MaxRecommendations = 3

// Filter selects which spot types are eligible.
type Filter string

const (
	FilterBest       Filter = "best"
	FilterAccessible Filter = "accessible"
	FilterEV         Filter = "ev"
)

// ParseFilter validates a filter name. The empty string means FilterBest.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterBest:
		return FilterBest, nil
	case FilterAccessible:
		return FilterAccessible, nil
	case FilterEV:
		return FilterEV, nil
	}
	return "", fmt.Errorf("unknown guidance filter %q", s)
}

func (f Filter) accepts(t models.SpotType) bool {
	switch f {
	case FilterAccessible:
		return t == models.SpotTypeAccessible
	case FilterEV:
		return t == models.SpotTypeEV
	}
	return true
}

// Recommendation is one ranked spot.
type Recommendation struct {
	Spot     models.SpotDefinition `json:"spot"`
	Center   models.Point          `json:"center"`
	Distance float64               `json:"distance"`
}

// Result is the guidance output. Entrance is nil when no entrance could be
// resolved, in which case both slices are empty.
type Result struct {
	RecommendedSpots []Recommendation `json:"recommendedSpots"`
	PathPoints       []models.Point   `json:"pathPoints"`
	Entrance         *models.Entrance `json:"entrance"`
}

// Options tune candidate selection.
type Options struct {
	// TreatUnknownAsOccupied excludes spots that have no recorded state.
	// By default a spot without state counts as available, which also
	// makes a spot whose sensor dropped out look vacant.
	TreatUnknownAsOccupied bool
}

func emptyResult() Result {
	return Result{
		RecommendedSpots: []Recommendation{},
		PathPoints:       []models.Point{},
	}
}

// Compute ranks the available spots of lot by distance from the selected
// entrance using the default Options.
func Compute(lot *models.LotDefinition, states map[string]models.SpotState, filter Filter, entranceID string) Result {
	return ComputeWithOptions(lot, states, filter, entranceID, Options{})
}

// ComputeWithOptions is Compute with explicit options.
//
// The entrance is the one matching entranceID, or the first entrance when
// entranceID is empty or unknown. Candidates are unoccupied spots accepted
// by filter, sorted by ascending distance; equal distances keep lot order.
// The path runs from the entrance along its y to the destination x, then
// to the destination center.
func ComputeWithOptions(lot *models.LotDefinition, states map[string]models.SpotState, filter Filter, entranceID string, opts Options) Result {
	result := emptyResult()
	if lot == nil {
		return result
	}

	entrance, ok := resolveEntrance(lot, entranceID)
	if !ok {
		return result
	}
	result.Entrance = &entrance
	origin := entrance.Point()

	var ranked []Recommendation
	for _, spot := range lot.Spots {
		state, known := states[spot.SpotID]
		if known && state.Occupied {
			continue
		}
		if !known && opts.TreatUnknownAsOccupied {
			continue
		}
		if !filter.accepts(spot.Type) {
			continue
		}
		center := geometry.SpotCenter(spot)
		ranked = append(ranked, Recommendation{
			Spot:     spot,
			Center:   center,
			Distance: geometry.Distance(origin, center),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})
	if len(ranked) > MaxRecommendations {
		ranked = ranked[:MaxRecommendations]
	}
	if len(ranked) == 0 {
		return result
	}

	dest := ranked[0].Center
	result.RecommendedSpots = ranked
	result.PathPoints = []models.Point{
		origin,
		{X: dest.X, Y: origin.Y},
		dest,
	}
	return result
}

func resolveEntrance(lot *models.LotDefinition, entranceID string) (models.Entrance, bool) {
	if len(lot.Entrances) == 0 {
		return models.Entrance{}, false
	}
	if entranceID != "" {
		if e, ok := lot.FindEntrance(entranceID); ok {
			return e, true
		}
	}
	return lot.Entrances[0], true
}
