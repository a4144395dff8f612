package models

// Point is a position in normalized lot coordinates. X and Y are in [0,1]
// relative to the lot image; pixel mapping happens at the edges only.
type Point struct {
	X float64 `json:"x" yaml:"x" msgpack:"x"`
	Y float64 `json:"y" yaml:"y" msgpack:"y"`
}

// SpotType classifies a parking space.
type SpotType string

const (
	SpotTypeStandard   SpotType = "standard"
	SpotTypeAccessible SpotType = "accessible"
	SpotTypeEV         SpotType = "ev"
)

// Valid reports whether t is empty (unset) or one of the known spot types.
func (t SpotType) Valid() bool {
	switch t {
	case "", SpotTypeStandard, SpotTypeAccessible, SpotTypeEV:
		return true
	}
	return false
}

// SpotDefinition describes a single parking space as a polygon region.
// Center is optional; when nil it is derived from the polygon vertices.
type SpotDefinition struct {
	SpotID  string   `json:"spot_id" yaml:"spot_id"`
	Polygon []Point  `json:"polygon" yaml:"polygon"`
	Type    SpotType `json:"type,omitempty" yaml:"type,omitempty"`
	Center  *Point   `json:"center,omitempty" yaml:"center,omitempty"`
}

// Entrance is a named reference point used for guidance distances.
type Entrance struct {
	ID   string  `json:"id" yaml:"id"`
	Name string  `json:"name" yaml:"name"`
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
}

// Point returns the entrance position.
func (e Entrance) Point() Point {
	return Point{X: e.X, Y: e.Y}
}

// LotDefinition is an immutable snapshot of a parking lot. Updates replace
// the whole value; nothing patches a LotDefinition in place.
type LotDefinition struct {
	LotID       string           `json:"lot_id" yaml:"lot_id"`
	Name        string           `json:"name" yaml:"name"`
	Spots       []SpotDefinition `json:"spots" yaml:"spots"`
	Entrances   []Entrance       `json:"entrances,omitempty" yaml:"entrances,omitempty"`
	ImageWidth  int              `json:"image_width,omitempty" yaml:"image_width,omitempty"`
	ImageHeight int              `json:"image_height,omitempty" yaml:"image_height,omitempty"`
	CreatedAt   string           `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   string           `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// FindEntrance returns the entrance with the given id.
func (l *LotDefinition) FindEntrance(id string) (Entrance, bool) {
	for _, e := range l.Entrances {
		if e.ID == id {
			return e, true
		}
	}
	return Entrance{}, false
}
