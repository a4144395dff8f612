// Package geometry provides the small amount of plane geometry the
// guidance engine needs. All coordinates are normalized to the lot image.
package geometry

import (
	"math"

	"github.com/macapark/dashboard/internal/models"
)

// Centroid returns the arithmetic mean of the polygon vertices. This is not
// the area centroid; for the convex quadrilaterals lots are drawn with the
// difference is negligible. An empty polygon yields {0,0}.
func Centroid(polygon []models.Point) models.Point {
	n := len(polygon)
	if n == 0 {
		return models.Point{}
	}
	var sx, sy float64
	for _, p := range polygon {
		sx += p.X
		sy += p.Y
	}
	return models.Point{X: sx / float64(n), Y: sy / float64(n)}
}

// Distance returns the Euclidean distance between a and b. NaN and Inf
// inputs propagate.
func Distance(a, b models.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// SpotCenter returns the precomputed center of a spot, or the centroid of
// its polygon when none was stored.
func SpotCenter(spot models.SpotDefinition) models.Point {
	if spot.Center != nil {
		return *spot.Center
	}
	return Centroid(spot.Polygon)
}
