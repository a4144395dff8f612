package dashboard

import "github.com/macapark/dashboard/internal/models"

// DemoLot returns a three-row sample lot with two entrances, used to lay
// out a lot before a real definition exists. Each call returns a fresh
// value.
func DemoLot() *models.LotDefinition {
	spots := []models.SpotDefinition{
		rect("A1", models.SpotTypeAccessible, 0.02, 0.05, 0.13, 0.28),
		rect("A2", models.SpotTypeStandard, 0.15, 0.05, 0.26, 0.28),
		rect("A3", models.SpotTypeStandard, 0.28, 0.05, 0.39, 0.28),
		rect("A4", models.SpotTypeEV, 0.41, 0.05, 0.52, 0.28),
		rect("A5", models.SpotTypeStandard, 0.54, 0.05, 0.65, 0.28),
		rect("A6", models.SpotTypeStandard, 0.67, 0.05, 0.78, 0.28),
		rect("A7", models.SpotTypeEV, 0.80, 0.05, 0.91, 0.28),
		rect("B1", models.SpotTypeAccessible, 0.02, 0.38, 0.13, 0.58),
		rect("B2", models.SpotTypeStandard, 0.15, 0.38, 0.26, 0.58),
		rect("B3", models.SpotTypeStandard, 0.28, 0.38, 0.39, 0.58),
		rect("B4", models.SpotTypeStandard, 0.41, 0.38, 0.52, 0.58),
		rect("B5", models.SpotTypeEV, 0.54, 0.38, 0.65, 0.58),
		rect("B6", models.SpotTypeStandard, 0.67, 0.38, 0.78, 0.58),
		rect("B7", models.SpotTypeStandard, 0.80, 0.38, 0.91, 0.58),
		rect("C1", models.SpotTypeStandard, 0.02, 0.68, 0.13, 0.92),
		rect("C2", models.SpotTypeAccessible, 0.15, 0.68, 0.26, 0.92),
		rect("C3", models.SpotTypeStandard, 0.28, 0.68, 0.39, 0.92),
		rect("C4", models.SpotTypeStandard, 0.41, 0.68, 0.52, 0.92),
		rect("C5", models.SpotTypeStandard, 0.54, 0.68, 0.65, 0.92),
		rect("C6", models.SpotTypeEV, 0.67, 0.68, 0.78, 0.92),
		rect("C7", models.SpotTypeStandard, 0.80, 0.68, 0.91, 0.92),
	}
	return &models.LotDefinition{
		LotID: "demo-lot-1",
		Name:  "Main Parking Lot",
		Entrances: []models.Entrance{
			{ID: "entrance-main", Name: "Main Entrance", X: 0.5, Y: 0.99},
			{ID: "entrance-side", Name: "Side Entrance", X: 0.0, Y: 0.5},
		},
		Spots: spots,
	}
}

func rect(id string, typ models.SpotType, x0, y0, x1, y1 float64) models.SpotDefinition {
	return models.SpotDefinition{
		SpotID: id,
		Type:   typ,
		Polygon: []models.Point{
			{X: x0, Y: y0},
			{X: x1, Y: y0},
			{X: x1, Y: y1},
			{X: x0, Y: y1},
		},
	}
}
