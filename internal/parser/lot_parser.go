// Package parser decodes lot definition files at the import boundary.
// Supported inputs are JSON or JSONC lot objects, bare JSON spot lists,
// YAML lots and the pixel coordinate YAML written by the spot marking
// tool. Any of them may be gzip-compressed.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/macapark/dashboard/internal/models"
)

// MaxImportSize bounds the decompressed size of an import.
const MaxImportSize = 32 << 20

// Format names reported in ImportResult.
const (
	FormatLotJSON     = "lot-json"
	FormatSpotsJSON   = "spots-json"
	FormatLotYAML     = "lot-yaml"
	FormatSpotsYAML   = "spots-yaml"
	FormatCoordinates = "coordinates-yaml"
)

// ErrUnsupported is returned when no parser recognizes the input.
var ErrUnsupported = errors.New("unsupported lot file format")

// ImportResult is a decoded, validated import. Exactly one of Lot and
// Spots is set: a spot list replaces the spots of whatever lot is loaded.
type ImportResult struct {
	Format string
	Lot    *models.LotDefinition
	Spots  []models.SpotDefinition
}

// Options carries context the file itself may lack.
type Options struct {
	// ImageWidth and ImageHeight normalize pixel coordinates.
	ImageWidth  int
	ImageHeight int
}

// LotParser decodes one family of lot files.
type LotParser interface {
	// Name returns the unique name of the parser.
	Name() string
	// CanParse reports whether the parser handles a file with this name
	// and content.
	CanParse(name string, data []byte) bool
	// Parse decodes data. Results are not yet validated.
	Parse(data []byte, opts Options) (*ImportResult, error)
}

// Decode decompresses data if needed, picks a parser and validates the
// result.
func Decode(name string, data []byte, opts Options) (*ImportResult, error) {
	return defaultRegistry.Decode(name, data, opts)
}

// Decode is the registry-bound form of the package Decode.
func (r *Registry) Decode(name string, data []byte, opts Options) (*ImportResult, error) {
	data, name, err := Decompress(name, data)
	if err != nil {
		return nil, err
	}
	p, err := r.FindParser(name, data)
	if err != nil {
		return nil, err
	}
	res, err := p.Parse(data, opts)
	if err != nil {
		return nil, err
	}
	if res.Lot != nil {
		if err := ValidateLot(res.Lot); err != nil {
			return nil, err
		}
		return res, nil
	}
	if err := ValidateSpots(res.Spots); err != nil {
		return nil, err
	}
	return res, nil
}

// Decompress gunzips gzip payloads, detected by magic bytes, and strips a
// trailing .gz from name.
func Decompress(name string, data []byte) ([]byte, string, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, name, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, name, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, MaxImportSize+1))
	if err != nil {
		return nil, name, fmt.Errorf("gzip: %w", err)
	}
	if len(out) > MaxImportSize {
		return nil, name, fmt.Errorf("decompressed import exceeds %d bytes", MaxImportSize)
	}
	return out, strings.TrimSuffix(name, ".gz"), nil
}

// ApplyImport returns the lot that results from importing res while
// current is loaded. Spot lists replace the spots of current, or create an
// "imported" lot when nothing is loaded.
func ApplyImport(current *models.LotDefinition, res *ImportResult) *models.LotDefinition {
	if res.Lot != nil {
		return res.Lot
	}
	if current == nil {
		return &models.LotDefinition{
			LotID: "imported",
			Name:  "Imported Lot",
			Spots: res.Spots,
		}
	}
	next := *current
	next.Spots = res.Spots
	return &next
}

// SpotExport is one element of an exported spot list.
type SpotExport struct {
	SpotID  string         `json:"spot_id"`
	Polygon []models.Point `json:"polygon"`
}

// ExportSpots returns the spot list of lot in the same shape the spot list
// import accepts.
func ExportSpots(lot *models.LotDefinition) []SpotExport {
	if lot == nil {
		return []SpotExport{}
	}
	out := make([]SpotExport, 0, len(lot.Spots))
	for _, s := range lot.Spots {
		out = append(out, SpotExport{SpotID: s.SpotID, Polygon: s.Polygon})
	}
	return out
}

func hasExt(name string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func firstByte(data []byte) byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
