package parser

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"

	"github.com/macapark/dashboard/internal/models"
)

// JSONParser reads lot objects and bare spot arrays. Comments and
// trailing commas are accepted.
type JSONParser struct{}

// NewJSONParser returns a JSONParser.
func NewJSONParser() *JSONParser { return &JSONParser{} }

func (p *JSONParser) Name() string { return "json" }

func (p *JSONParser) CanParse(name string, data []byte) bool {
	if hasExt(name, ".json", ".jsonc") {
		return true
	}
	switch firstByte(data) {
	case '{', '[', '/':
		return true
	}
	return false
}

func (p *JSONParser) Parse(data []byte, _ Options) (*ImportResult, error) {
	clean := jsonc.ToJSON(data)
	switch firstByte(clean) {
	case '[':
		var spots []models.SpotDefinition
		if err := json.Unmarshal(clean, &spots); err != nil {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("spot list: %v", err)}}
		}
		if spots == nil {
			spots = []models.SpotDefinition{}
		}
		return &ImportResult{Format: FormatSpotsJSON, Spots: spots}, nil
	case '{':
		var lot models.LotDefinition
		if err := json.Unmarshal(clean, &lot); err != nil {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("lot: %v", err)}}
		}
		return &ImportResult{Format: FormatLotJSON, Lot: &lot}, nil
	default:
		return nil, &ValidationError{Problems: []string{"expected a JSON object or array"}}
	}
}
