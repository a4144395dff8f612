package history

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/macapark/dashboard/internal/clock"
	"github.com/macapark/dashboard/internal/store"
)

// Event is one recorded occupancy transition.
type Event struct {
	LotID      string    `db:"lot_id" json:"lotId"`
	SpotID     string    `db:"spot_id" json:"spotId"`
	Occupied   bool      `db:"occupied" json:"occupied"`
	TS         string    `db:"ts" json:"ts"`
	Source     string    `db:"source" json:"source"`
	RecordedAt time.Time `db:"recorded_at" json:"recordedAt"`
}

// DefaultQueryLimit caps history queries without an explicit limit.
const DefaultQueryLimit = 100

// Recorder persists occupancy transitions. Writes happen on a background
// goroutine so store listeners never wait on the database; events are
// dropped with a warning when the buffer is full.
type Recorder struct {
	db     *sqlx.DB
	clock  clock.Clock
	logger *slog.Logger

	events chan Event
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	dropped int64
	written int64
}

// NewRecorder starts the writer goroutine. Call Close to flush and stop.
func NewRecorder(db *sqlx.DB, clk clock.Clock, logger *slog.Logger) *Recorder {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		db:     db,
		clock:  clk,
		logger: logger.With("component", "history"),
		events: make(chan Event, 1024),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Subscribe attaches the recorder to s and returns the unsubscribe func.
func (r *Recorder) Subscribe(s *store.Store) func() {
	return s.Subscribe(r.Observe)
}

// Observe is a store.Listener that enqueues every transition caused by
// action.
func (r *Recorder) Observe(action store.Action, prev, next store.State) {
	events := Transitions(action, prev, next, r.clock.Now())
	if len(events) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, e := range events {
		select {
		case r.events <- e:
		default:
			r.dropped++
			r.logger.Warn("history buffer full, dropping event", "spot_id", e.SpotID)
		}
	}
}

// Transitions lists the spots whose occupancy action changed as events.
func Transitions(action store.Action, prev, next store.State, now time.Time) []Event {
	changed := store.ChangedSpots(action, prev, next)
	if len(changed) == 0 {
		return nil
	}
	lotID := ""
	if next.Lot != nil {
		lotID = next.Lot.LotID
	}
	out := make([]Event, 0, len(changed))
	for _, st := range changed {
		out = append(out, Event{
			LotID:      lotID,
			SpotID:     st.SpotID,
			Occupied:   st.Occupied,
			TS:         st.LastUpdated,
			Source:     action.Type(),
			RecordedAt: now.UTC(),
		})
	}
	return out
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for e := range r.events {
		if err := r.Insert(context.Background(), e); err != nil {
			r.logger.Error("history insert failed", "spot_id", e.SpotID, "error", err)
			continue
		}
		r.mu.Lock()
		r.written++
		r.mu.Unlock()
	}
}

// Insert writes one event synchronously.
func (r *Recorder) Insert(ctx context.Context, e Event) error {
	query := r.db.Rebind(`INSERT INTO occupancy_events
		(lot_id, spot_id, occupied, ts, source, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		e.LotID, e.SpotID, e.Occupied, e.TS, e.Source, e.RecordedAt); err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// SpotHistory returns the newest events for spotID first.
func (r *Recorder) SpotHistory(ctx context.Context, spotID string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 10*DefaultQueryLimit {
		limit = DefaultQueryLimit
	}
	query := r.db.Rebind(`SELECT lot_id, spot_id, occupied, ts, source, recorded_at
		FROM occupancy_events
		WHERE spot_id = ?
		ORDER BY recorded_at DESC
		LIMIT ` + strconv.Itoa(limit))
	events := []Event{}
	if err := r.db.SelectContext(ctx, &events, query, spotID); err != nil {
		return nil, fmt.Errorf("history: query %s: %w", spotID, err)
	}
	return events, nil
}

// Stats reports written and dropped event counts.
func (r *Recorder) Stats() (written, dropped int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written, r.dropped
}

// Close flushes queued events and stops the writer. It does not close
// the database.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()
	r.wg.Wait()
}
