package guidance

import (
	"sync"

	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

// Key identifies one guidance computation.
type Key struct {
	LotVersion       uint64
	OccupancyVersion uint64
	Filter           Filter
	EntranceID       string
}

// Memo caches guidance results for the current lot and occupancy versions.
// Any version change discards every cached result.
type Memo struct {
	opts Options

	mu      sync.Mutex
	lotVer  uint64
	occVer  uint64
	results map[Key]Result
	hits    uint64
	misses  uint64
}

// NewMemo creates an empty cache computing with opts.
func NewMemo(opts Options) *Memo {
	return &Memo{
		opts:    opts,
		results: make(map[Key]Result),
	}
}

// Compute returns guidance for state, reusing a cached result when the
// lot and occupancy versions have not moved. Each call gets its own copy of
// the result slices; spot polygons still alias the lot, which is immutable.
func (m *Memo) Compute(state store.State, filter Filter, entranceID string) Result {
	key := Key{
		LotVersion:       state.LotVersion,
		OccupancyVersion: state.OccupancyVersion,
		Filter:           filter,
		EntranceID:       entranceID,
	}

	m.mu.Lock()
	if key.LotVersion != m.lotVer || key.OccupancyVersion != m.occVer {
		m.results = make(map[Key]Result)
		m.lotVer = key.LotVersion
		m.occVer = key.OccupancyVersion
	}
	if r, ok := m.results[key]; ok {
		m.hits++
		m.mu.Unlock()
		return r.clone()
	}
	m.misses++
	m.mu.Unlock()

	r := ComputeWithOptions(state.Lot, state.SpotStates, filter, entranceID, m.opts)

	m.mu.Lock()
	if key.LotVersion == m.lotVer && key.OccupancyVersion == m.occVer {
		m.results[key] = r.clone()
	}
	m.mu.Unlock()
	return r
}

func (r Result) clone() Result {
	out := r
	if r.RecommendedSpots != nil {
		out.RecommendedSpots = append([]Recommendation(nil), r.RecommendedSpots...)
	}
	if r.PathPoints != nil {
		out.PathPoints = append([]models.Point(nil), r.PathPoints...)
	}
	if r.Entrance != nil {
		e := *r.Entrance
		out.Entrance = &e
	}
	return out
}

// Stats returns cache hit and miss counts.
func (m *Memo) Stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}
