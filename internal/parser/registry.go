package parser

import (
	"fmt"
	"strings"
)

// Registry holds the lot parsers in detection order.
type Registry struct {
	parsers []LotParser
}

var defaultRegistry = NewRegistry()

// NewRegistry returns a registry with the built-in parsers.
func NewRegistry() *Registry {
	return &Registry{
		parsers: []LotParser{
			NewJSONParser(),
			NewYAMLParser(),
		},
	}
}

// DefaultRegistry returns the registry used by Decode.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds p after the existing parsers.
func (r *Registry) Register(p LotParser) {
	r.parsers = append(r.parsers, p)
}

// FindParser returns the first parser that accepts the input.
func (r *Registry) FindParser(name string, data []byte) (LotParser, error) {
	for _, p := range r.parsers {
		if p.CanParse(name, data) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
}

// GetParserByName returns a parser by its name.
func (r *Registry) GetParserByName(name string) (LotParser, error) {
	name = strings.ToLower(name)
	for _, p := range r.parsers {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("parser not found: %s", name)
}
