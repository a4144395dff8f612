package geometry

import (
	"math"
	"testing"

	"github.com/macapark/dashboard/internal/models"
)

func TestCentroid(t *testing.T) {
	tests := []struct {
		name    string
		polygon []models.Point
		want    models.Point
	}{
		{
			name:    "empty polygon falls back to origin",
			polygon: nil,
			want:    models.Point{},
		},
		{
			name:    "single point",
			polygon: []models.Point{{X: 0.3, Y: 0.7}},
			want:    models.Point{X: 0.3, Y: 0.7},
		},
		{
			name: "unit square",
			polygon: []models.Point{
				{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
			},
			want: models.Point{X: 0.5, Y: 0.5},
		},
		{
			name: "triangle uses vertex mean",
			polygon: []models.Point{
				{X: 0, Y: 0}, {X: 0.6, Y: 0}, {X: 0, Y: 0.3},
			},
			want: models.Point{X: 0.2, Y: 0.1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Centroid(tt.polygon)
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Errorf("Centroid() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(models.Point{X: 0, Y: 0}, models.Point{X: 0.3, Y: 0.4}); math.Abs(d-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %v", d)
	}
	if d := Distance(models.Point{X: 0.2, Y: 0.2}, models.Point{X: 0.2, Y: 0.2}); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
	if d := Distance(models.Point{X: math.NaN()}, models.Point{}); !math.IsNaN(d) {
		t.Errorf("expected NaN to propagate, got %v", d)
	}
	if d := Distance(models.Point{X: math.Inf(1)}, models.Point{}); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf to propagate, got %v", d)
	}
}

func TestSpotCenter(t *testing.T) {
	square := []models.Point{{X: 0, Y: 0}, {X: 0.2, Y: 0}, {X: 0.2, Y: 0.2}, {X: 0, Y: 0.2}}

	derived := SpotCenter(models.SpotDefinition{SpotID: "A1", Polygon: square})
	if math.Abs(derived.X-0.1) > 1e-9 || math.Abs(derived.Y-0.1) > 1e-9 {
		t.Errorf("expected derived center (0.1,0.1), got %+v", derived)
	}

	stored := &models.Point{X: 0.9, Y: 0.9}
	if got := SpotCenter(models.SpotDefinition{SpotID: "A2", Polygon: square, Center: stored}); got != *stored {
		t.Errorf("expected stored center %+v, got %+v", *stored, got)
	}
}
