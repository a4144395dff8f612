package parser

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/macapark/dashboard/internal/models"
)

// YAMLParser reads YAML lots and the pixel coordinate lists written by
// the spot marking tool:
//
//	-
//	  id: 0
//	  coordinates: [[12,40],[80,40],[80,120],[12,120]]
type YAMLParser struct{}

// NewYAMLParser returns a YAMLParser.
func NewYAMLParser() *YAMLParser { return &YAMLParser{} }

func (p *YAMLParser) Name() string { return "yaml" }

func (p *YAMLParser) CanParse(name string, data []byte) bool {
	if hasExt(name, ".yml", ".yaml") {
		return true
	}
	b := firstByte(data)
	return b == '-' || b == '#' || (b >= 'a' && b <= 'z')
}

// CoordinateEntry is one spot of a pixel coordinate file.
type CoordinateEntry struct {
	ID          int         `yaml:"id"`
	Coordinates [][]float64 `yaml:"coordinates"`
}

func (p *YAMLParser) Parse(data []byte, opts Options) (*ImportResult, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("yaml: %v", err)}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ValidationError{Problems: []string{"yaml: empty document"}}
	}
	doc := root.Content[0]

	switch doc.Kind {
	case yaml.MappingNode:
		var lot models.LotDefinition
		if err := doc.Decode(&lot); err != nil {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("yaml lot: %v", err)}}
		}
		return &ImportResult{Format: FormatLotYAML, Lot: &lot}, nil

	case yaml.SequenceNode:
		if isCoordinateList(doc) {
			var entries []CoordinateEntry
			if err := doc.Decode(&entries); err != nil {
				return nil, &ValidationError{Problems: []string{fmt.Sprintf("coordinates: %v", err)}}
			}
			spots, err := NormalizeCoordinates(entries, opts.ImageWidth, opts.ImageHeight)
			if err != nil {
				return nil, err
			}
			return &ImportResult{Format: FormatCoordinates, Spots: spots}, nil
		}
		var spots []models.SpotDefinition
		if err := doc.Decode(&spots); err != nil {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("yaml spots: %v", err)}}
		}
		return &ImportResult{Format: FormatSpotsYAML, Spots: spots}, nil
	}
	return nil, &ValidationError{Problems: []string{"yaml: expected a mapping or a list"}}
}

func isCoordinateList(seq *yaml.Node) bool {
	if len(seq.Content) == 0 || seq.Content[0].Kind != yaml.MappingNode {
		return false
	}
	m := seq.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == "coordinates" {
			return true
		}
	}
	return false
}

// NormalizeCoordinates converts pixel polygons to normalized spots. Spot
// ids are the decimal entry ids. When no image size is known the
// coordinates must already be normalized.
func NormalizeCoordinates(entries []CoordinateEntry, width, height int) ([]models.SpotDefinition, error) {
	verr := &ValidationError{}
	scaleX, scaleY := 1.0, 1.0
	if width > 0 && height > 0 {
		scaleX, scaleY = float64(width), float64(height)
	}

	spots := make([]models.SpotDefinition, 0, len(entries))
	for _, e := range entries {
		spot := models.SpotDefinition{
			SpotID:  strconv.Itoa(e.ID),
			Polygon: make([]models.Point, 0, len(e.Coordinates)),
		}
		for j, c := range e.Coordinates {
			if len(c) != 2 {
				verr.add("spot %d: coordinate %d must be an [x, y] pair", e.ID, j)
				continue
			}
			spot.Polygon = append(spot.Polygon, models.Point{X: c[0] / scaleX, Y: c[1] / scaleY})
		}
		spots = append(spots, spot)
	}
	if width <= 0 || height <= 0 {
		for _, s := range spots {
			for _, pt := range s.Polygon {
				if !normalized(pt.X) || !normalized(pt.Y) {
					verr.add("image width and height are required to normalize pixel coordinates")
					return nil, verr
				}
			}
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return spots, nil
}
