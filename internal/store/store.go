package store

import (
	"sort"
	"sync"

	"github.com/macapark/dashboard/internal/models"
)

// SnapshotPolicy decides what happens to known spots that a snapshot
// does not mention.
type SnapshotPolicy string

const (
	// SnapshotMerge keeps omitted spots at their previous state. Snapshots
	// may then be partial, at the cost of stale entries for spots the
	// backend stopped reporting.
	SnapshotMerge SnapshotPolicy = "merge"
	// SnapshotReplace drops every spot the snapshot omits.
	SnapshotReplace SnapshotPolicy = "replace"
)

// ParseSnapshotPolicy maps a config value to a policy; anything unknown
// is SnapshotMerge.
func ParseSnapshotPolicy(s string) SnapshotPolicy {
	if SnapshotPolicy(s) == SnapshotReplace {
		return SnapshotReplace
	}
	return SnapshotMerge
}

// Listener observes every dispatched action together with the state
// before and after it. Listeners run synchronously in dispatch order and
// must not call Dispatch themselves.
type Listener func(action Action, prev, next State)

// Store is the application state container. It is created once at startup
// and handed to every component that reads or changes state.
type Store struct {
	// dispatchMu serializes reduction and listener notification so that
	// listeners observe actions in the order they were applied.
	dispatchMu sync.Mutex

	mu     sync.RWMutex
	state  State
	policy SnapshotPolicy

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// Option configures a Store.
type Option func(*Store)

// WithSnapshotPolicy sets how SET_SNAPSHOT treats omitted spots.
func WithSnapshotPolicy(p SnapshotPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithInitialState seeds the store, e.g. with persisted settings.
func WithInitialState(state State) Option {
	return func(s *Store) { s.state = state }
}

// New creates a store holding InitialState.
func New(opts ...Option) *Store {
	s := &Store{
		state:     InitialState(),
		policy:    SnapshotMerge,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.state.SpotStates == nil {
		s.state.SpotStates = make(map[string]models.SpotState)
	}
	return s
}

// Dispatch reduces action into the current state atomically and notifies
// listeners. It returns the new state.
func (s *Store) Dispatch(action Action) State {
	if snap, ok := action.(SetSnapshot); ok && s.policy == SnapshotReplace {
		snap.Prune = true
		action = snap
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next := Reduce(prev, action)
	s.state = next
	s.mu.Unlock()

	for _, l := range s.snapshotListeners() {
		l(action, prev, next)
	}
	return next
}

// Snapshot returns the current state. The returned value must be treated
// as read-only.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Policy returns the configured snapshot policy.
func (s *Store) Policy() SnapshotPolicy {
	return s.policy
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) snapshotListeners() []Listener {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}
