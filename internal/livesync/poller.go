package livesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/macapark/dashboard/internal/clock"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

// ErrNoLot is returned by Poll when the store holds no lot.
var ErrNoLot = errors.New("no lot loaded")

// OccupancyFetcher reads the occupancy list for a lot from the REST
// collaborator.
type OccupancyFetcher interface {
	FetchOccupancy(ctx context.Context, lotID string) ([]models.SpotOccupancy, error)
}

// StateStore is the part of *store.Store the poller needs.
type StateStore interface {
	Dispatcher
	Snapshot() store.State
}

// Poller periodically refreshes occupancy over REST. It complements the
// push channel for deployments where the push feed is unavailable.
type Poller struct {
	fetcher  OccupancyFetcher
	store    StateStore
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller. A nil clock uses the real clock.
func NewPoller(f OccupancyFetcher, s StateStore, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Poller {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:  f,
		store:    s,
		clock:    clk,
		logger:   logger.With("component", "poller"),
		interval: interval,
	}
}

// Start launches the polling loop. It is a no-op when already running or
// when the interval is not positive.
func (p *Poller) Start(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	ticker := p.clock.NewTicker(p.interval)
	go p.loop(runCtx, ticker, p.done)
}

// Stop cancels the ticker and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) loop(ctx context.Context, ticker clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := p.Poll(ctx); err != nil && !errors.Is(err, ErrNoLot) {
				p.logger.Warn("occupancy poll failed", "error", err)
			}
		}
	}
}

// Poll fetches occupancy once and applies it as a snapshot stamped with
// the poll time.
func (p *Poller) Poll(ctx context.Context) error {
	state := p.store.Snapshot()
	if state.Lot == nil || state.Lot.LotID == "" {
		return ErrNoLot
	}
	spots, err := p.fetcher.FetchOccupancy(ctx, state.Lot.LotID)
	if err != nil {
		return err
	}
	p.store.Dispatch(store.SetSnapshot{
		Spots: spots,
		TS:    p.clock.Now().UTC().Format(time.RFC3339),
	})
	return nil
}
