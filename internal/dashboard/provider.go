// Package dashboard wires the parking backend endpoints to the store: it
// loads the lot over REST, runs the live push client and the optional
// occupancy poller, and rebuilds them when settings change.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/macapark/dashboard/internal/clock"
	"github.com/macapark/dashboard/internal/livesync"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/restclient"
	"github.com/macapark/dashboard/internal/store"
)

// User-facing errors stored in State.Error.
const (
	ErrMsgNotConfigured = "Backend not configured. Go to Settings to enter REST and WebSocket URLs."
	ErrMsgNotConnected  = "Backend not connected. Check Settings."
)

// ErrNotConfigured is returned by operations that need the REST backend
// when no REST URL is set.
var ErrNotConfigured = errors.New("backend not configured")

// Options tunes the components the provider builds.
type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Clock          clock.Clock
	Dialer         livesync.Dialer
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Provider owns the REST client, live client and poller for the current
// settings.
//
// lifeMu serializes Start, Reconfigure, Stop and Reconnect so at most one
// live client and poller exist at a time. mu guards the fields below it and
// is never held while a lifecycle call blocks.
type Provider struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger

	lifeMu sync.Mutex

	mu     sync.Mutex
	ctx    context.Context
	rest   *restclient.Client
	live   *livesync.Client
	poller *livesync.Poller
}

// New creates an idle provider.
func New(s *store.Store, opts Options) *Provider {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	return &Provider{
		store:  s,
		opts:   opts,
		logger: opts.Logger.With("component", "dashboard"),
	}
}

// Start applies settings: the lot is fetched, then the live client and
// poller start. REST failures end up in State.Error rather than being
// returned; ctx bounds the lifetime of the background clients.
func (p *Provider) Start(ctx context.Context, settings models.ParkingSettings) {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.stopClients()
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	p.apply(settings)
}

// Reconfigure stops the running clients and applies new settings.
func (p *Provider) Reconfigure(settings models.ParkingSettings) {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.stopClients()
	p.apply(settings)
}

// Stop shuts down the live client and poller.
func (p *Provider) Stop() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.stopClients()
}

// apply builds and starts clients for settings. p.lifeMu must be held and
// the previous clients already stopped.
func (p *Provider) apply(settings models.ParkingSettings) {
	p.store.Dispatch(store.SetSettings{Settings: settings})

	p.mu.Lock()
	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
		p.ctx = ctx
	}
	p.rest = nil
	if settings.RestBaseURL != "" {
		rest, err := restclient.New(restclient.Config{
			BaseURL:    settings.RestBaseURL,
			HTTPClient: p.opts.HTTPClient,
			Logger:     p.opts.Logger,
		})
		if err != nil {
			p.logger.Warn("invalid REST base URL", "url", settings.RestBaseURL, "error", err)
		} else {
			p.rest = rest
		}
	}
	if settings.WSURL != "" {
		p.live = livesync.NewClient(p.store, livesync.ClientConfig{
			URL:            settings.WSURL,
			InitialBackoff: p.opts.InitialBackoff,
			MaxBackoff:     p.opts.MaxBackoff,
			Dialer:         p.opts.Dialer,
			Clock:          p.opts.Clock,
			Logger:         p.opts.Logger,
		})
	}
	if p.rest != nil && p.opts.PollInterval > 0 {
		p.poller = livesync.NewPoller(p.rest, p.store, p.opts.PollInterval, p.opts.Clock, p.opts.Logger)
	}
	live, poller := p.live, p.poller
	p.mu.Unlock()

	if settings.RestBaseURL == "" {
		p.store.Dispatch(store.ErrorAction(ErrMsgNotConfigured))
	} else if err := p.LoadLot(ctx); err != nil {
		p.logger.Warn("initial lot load failed", "error", err)
	}

	if live != nil {
		if err := live.Start(ctx); err != nil {
			p.logger.Warn("live client not started", "error", err)
		}
	}
	if poller != nil {
		poller.Start(ctx)
	}
}

// stopClients stops and forgets the live client and poller. p.lifeMu must
// be held.
func (p *Provider) stopClients() {
	p.mu.Lock()
	live, poller := p.live, p.poller
	p.live, p.poller = nil, nil
	p.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	if live != nil {
		live.Stop()
	}
}

// LoadLot fetches the current lot over REST and dispatches it. On failure
// the user-facing error is set and the error returned.
func (p *Provider) LoadLot(ctx context.Context) error {
	rest := p.REST()
	if rest == nil {
		p.store.Dispatch(store.ErrorAction(ErrMsgNotConnected))
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	lot, err := rest.FetchCurrentLot(ctx)
	if err != nil {
		p.store.Dispatch(store.ErrorAction(ErrMsgNotConnected))
		return fmt.Errorf("load lot: %w", err)
	}
	p.store.Dispatch(store.SetLot{Lot: lot})
	p.logger.Info("lot loaded", "lot_id", lot.LotID, "spots", len(lot.Spots))
	return nil
}

// PushLot sends lot to the REST backend and, on success, makes the stored
// version current.
func (p *Provider) PushLot(ctx context.Context, token string, lot *models.LotDefinition) (*models.LotDefinition, error) {
	rest := p.REST()
	if rest == nil {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	updated, err := rest.UpdateLot(ctx, token, lot)
	if err != nil {
		return nil, err
	}
	p.store.Dispatch(store.SetLot{Lot: updated})
	return updated, nil
}

// Reconnect restarts the live client with a fresh backoff.
func (p *Provider) Reconnect() error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.mu.Lock()
	live, ctx := p.live, p.ctx
	p.mu.Unlock()
	if live == nil {
		return livesync.ErrNoURL
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return live.Reconnect(ctx)
}

// REST returns the REST client, or nil when no valid REST URL is set.
func (p *Provider) REST() *restclient.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rest
}

// LiveStats returns live client statistics. ok is false when no push URL
// is configured.
func (p *Provider) LiveStats() (stats livesync.Stats, ok bool) {
	p.mu.Lock()
	live := p.live
	p.mu.Unlock()
	if live == nil {
		return livesync.Stats{}, false
	}
	return live.Stats(), true
}
