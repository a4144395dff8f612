// Package livesync keeps the store in step with the upstream occupancy
// feed: a reconnecting push client and an optional REST poller.
package livesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/macapark/dashboard/internal/clock"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

// ErrNoURL is returned by Start when no push URL is configured.
var ErrNoURL = errors.New("push channel URL not configured")

// Dispatcher receives the actions produced by the client. *store.Store
// implements it.
type Dispatcher interface {
	Dispatch(action store.Action) store.State
}

// ClientConfig configures a Client.
type ClientConfig struct {
	URL            string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Dialer         Dialer
	Clock          clock.Clock
	Logger         *slog.Logger
}

// Stats is a point-in-time view of client activity.
type Stats struct {
	Running        bool          `json:"running"`
	URL            string        `json:"url"`
	ConnectionID   string        `json:"connectionId,omitempty"`
	Attempts       int64         `json:"attempts"`
	Successes      int64         `json:"successes"`
	Failures       int           `json:"consecutiveFailures"`
	NextDelay      time.Duration `json:"-"`
	NextDelayMs    int64         `json:"nextDelayMs"`
	FramesApplied  int64         `json:"framesApplied"`
	FramesDropped  int64         `json:"framesDropped"`
	LastConnected  *time.Time    `json:"lastConnected,omitempty"`
	LastDisconnect *time.Time    `json:"lastDisconnect,omitempty"`
}

// Client maintains one logical connection to the push channel and turns
// its frames into store actions.
//
// Each Start begins a new run identified by a generation number. Timers,
// dials and read loops carry the generation they were started under and
// do nothing once it is stale, so Stop never races a late callback.
type Client struct {
	dispatcher Dispatcher
	dialer     Dialer
	clock      clock.Clock
	logger     *slog.Logger
	url        string

	mu        sync.Mutex
	gen       uint64
	running   bool
	cancel    context.CancelFunc
	runCtx    context.Context
	timer     clock.Timer
	conn      Conn
	connID    string
	backoff   *Backoff
	nextDelay time.Duration
	attempts  int64
	successes int64
	lastUp    time.Time
	lastDown  time.Time

	liveGen atomic.Uint64
	applied atomic.Int64
	dropped atomic.Int64
}

// NewClient creates a stopped client.
func NewClient(d Dispatcher, cfg ClientConfig) *Client {
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		dispatcher: d,
		dialer:     cfg.Dialer,
		clock:      cfg.Clock,
		logger:     cfg.Logger.With("component", "livesync"),
		url:        cfg.URL,
		backoff:    NewBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
	}
}

// Start begins connecting in the background. It is a no-op if the client
// is already running. Cancelling ctx has the same effect as Stop.
func (c *Client) Start(ctx context.Context) error {
	if c.url == "" {
		return ErrNoURL
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.gen++
	gen := c.gen
	c.liveGen.Store(gen)
	c.runCtx, c.cancel = context.WithCancel(ctx)
	runCtx := c.runCtx
	c.mu.Unlock()

	c.logger.Info("starting live connection", "url", c.url)

	go func() {
		<-runCtx.Done()
		c.stop(gen)
	}()
	go c.connect(gen)
	return nil
}

// Stop cancels any pending reconnect, closes the active connection and
// leaves the client disconnected until the next Start.
func (c *Client) Stop() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.stop(gen)
}

func (c *Client) stop(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.gen != gen {
		return
	}

	c.running = false
	c.gen++
	c.liveGen.Store(c.gen)
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.lastDown = c.clock.Now()
	}
	c.connID = ""
	c.nextDelay = 0
	c.dispatcher.Dispatch(store.SetConnectionState{State: models.ConnectionDisconnected})
	c.logger.Info("live connection stopped")
}

// Reconnect drops the current connection and dials again immediately
// with a fresh backoff.
func (c *Client) Reconnect(ctx context.Context) error {
	c.Stop()
	c.mu.Lock()
	c.backoff.Reset()
	c.mu.Unlock()
	return c.Start(ctx)
}

// Running reports whether the client has been started and not stopped.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Running:        c.running,
		URL:            c.url,
		ConnectionID:   c.connID,
		Attempts:       c.attempts,
		Successes:      c.successes,
		Failures:       c.backoff.Failures(),
		NextDelay:      c.nextDelay,
		NextDelayMs:    c.nextDelay.Milliseconds(),
		FramesApplied:  c.applied.Load(),
		FramesDropped:  c.dropped.Load(),
		LastConnected:  timeOrNil(c.lastUp),
		LastDisconnect: timeOrNil(c.lastDown),
	}
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// connect runs one connection attempt for run gen.
func (c *Client) connect(gen uint64) {
	c.mu.Lock()
	if !c.running || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.nextDelay = 0
	c.attempts++
	ctx := c.runCtx
	c.dispatcher.Dispatch(store.SetConnectionState{State: models.ConnectionReconnecting})
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, c.url)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.gen != gen {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("live connection failed", "error", err)
		c.dispatcher.Dispatch(store.SetConnectionState{State: models.ConnectionDisconnected})
		c.scheduleLocked(gen)
		return
	}

	c.conn = conn
	c.connID = uuid.New().String()
	c.successes++
	c.lastUp = c.clock.Now()
	c.backoff.Reset()
	c.dispatcher.Dispatch(store.SetConnectionState{State: models.ConnectionConnected})
	c.logger.Info("live connection established", "connection_id", c.connID)

	// A failed write surfaces as a read error and takes the close path.
	if err := conn.WriteMessage(GetSnapshotFrame()); err != nil {
		c.logger.Warn("snapshot request failed", "connection_id", c.connID, "error", err)
		conn.Close()
	}
	go c.readLoop(gen, conn, c.connID)
}

// readLoop applies frames in delivery order until the connection fails.
func (c *Client) readLoop(gen uint64, conn Conn, connID string) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("live connection read ended", "connection_id", connID, "error", err)
			break
		}
		if c.liveGen.Load() != gen {
			break
		}
		c.handleFrame(data, connID)
	}
	conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.gen != gen || c.conn != conn {
		return
	}
	c.conn = nil
	c.connID = ""
	c.lastDown = c.clock.Now()
	c.logger.Info("live connection closed", "connection_id", connID)
	c.dispatcher.Dispatch(store.SetConnectionState{State: models.ConnectionDisconnected})
	c.scheduleLocked(gen)
}

func (c *Client) handleFrame(data []byte, connID string) {
	action, err := DecodeFrame(data)
	if err != nil {
		c.dropped.Add(1)
		c.logger.Debug("dropping frame", "connection_id", connID, "error", err)
		return
	}
	c.applied.Add(1)
	c.dispatcher.Dispatch(action)
}

// scheduleLocked arms the reconnect timer. c.mu must be held.
func (c *Client) scheduleLocked(gen uint64) {
	delay := c.backoff.Next()
	c.nextDelay = delay
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.clock.AfterFunc(delay, func() { c.connect(gen) })
	c.logger.Info("reconnect scheduled", "delay", delay, "failures", c.backoff.Failures())
}
