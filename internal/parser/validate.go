package parser

import (
	"fmt"
	"math"
	"strings"

	"github.com/macapark/dashboard/internal/models"
)

// MinPolygonPoints is the smallest polygon a spot may have.
const MinPolygonPoints = 3

// ValidationError lists every problem found in an imported lot. Nothing is
// applied when validation fails.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid lot: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid lot: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// ValidateSpots checks a spot list: non-empty unique ids, polygons of at
// least three finite normalized points, known types.
func ValidateSpots(spots []models.SpotDefinition) error {
	verr := &ValidationError{}
	validateSpots(verr, spots)
	return verr.orNil()
}

// ValidateLot checks the lot id, its spots and its entrances.
func ValidateLot(lot *models.LotDefinition) error {
	verr := &ValidationError{}
	if lot == nil {
		verr.add("lot is empty")
		return verr
	}
	if strings.TrimSpace(lot.LotID) == "" {
		verr.add("lot_id is required")
	}
	if lot.ImageWidth < 0 || lot.ImageHeight < 0 {
		verr.add("image size must not be negative")
	}
	validateSpots(verr, lot.Spots)

	seen := make(map[string]bool, len(lot.Entrances))
	for i, e := range lot.Entrances {
		label := fmt.Sprintf("entrance %d", i)
		if e.ID == "" {
			verr.add("%s: id is required", label)
		} else if seen[e.ID] {
			verr.add("%s: duplicate id %q", label, e.ID)
		}
		seen[e.ID] = true
		if !normalized(e.X) || !normalized(e.Y) {
			verr.add("%s: position (%v, %v) outside [0,1]", label, e.X, e.Y)
		}
	}
	return verr.orNil()
}

func validateSpots(verr *ValidationError, spots []models.SpotDefinition) {
	seen := make(map[string]bool, len(spots))
	for i, s := range spots {
		label := fmt.Sprintf("spot %d", i)
		if s.SpotID == "" {
			verr.add("%s: spot_id is required", label)
		} else {
			label = fmt.Sprintf("spot %q", s.SpotID)
			if seen[s.SpotID] {
				verr.add("%s: duplicate spot_id", label)
			}
			seen[s.SpotID] = true
		}
		if len(s.Polygon) < MinPolygonPoints {
			verr.add("%s: polygon needs at least %d points, has %d", label, MinPolygonPoints, len(s.Polygon))
		}
		for j, p := range s.Polygon {
			if !normalized(p.X) || !normalized(p.Y) {
				verr.add("%s: point %d (%v, %v) outside [0,1]", label, j, p.X, p.Y)
				break
			}
		}
		if !s.Type.Valid() {
			verr.add("%s: unknown type %q", label, s.Type)
		}
		if s.Center != nil && (!normalized(s.Center.X) || !normalized(s.Center.Y)) {
			verr.add("%s: center outside [0,1]", label)
		}
	}
}

func normalized(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
