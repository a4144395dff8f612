// Package emitter republishes occupancy changes to an MQTT broker so
// signage and other consumers can follow the lot without the dashboard.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

// Config configures the MQTT emitter.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// SpotMessage is published on {prefix}/spots/{spot_id}.
type SpotMessage struct {
	LotID    string `json:"lot_id"`
	SpotID   string `json:"spot_id"`
	Occupied bool   `json:"occupied"`
	TS       string `json:"ts"`
}

// SummaryMessage is published, retained, on {prefix}/summary.
type SummaryMessage struct {
	LotID string `json:"lot_id"`
	store.Counts
}

// ConnectionMessage is published, retained, on {prefix}/connection.
type ConnectionMessage struct {
	State models.ConnectionState `json:"state"`
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// MQTTEmitter publishes store changes to an MQTT broker.
type MQTTEmitter struct {
	cfg    Config
	client mqtt.Client
	logger *slog.Logger

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
	pending   sync.WaitGroup
}

// New creates an emitter with a paho client for cfg. Call Connect before
// publishing.
func New(cfg Config, logger *slog.Logger) *MQTTEmitter {
	e := newEmitter(cfg, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}
	e.client = mqtt.NewClient(opts)
	return e
}

// NewWithClient wraps an existing client, which must already be
// connected.
func NewWithClient(client mqtt.Client, cfg Config, logger *slog.Logger) *MQTTEmitter {
	e := newEmitter(cfg, logger)
	e.client = client
	e.connected = client.IsConnected()
	return e
}

func newEmitter(cfg Config, logger *slog.Logger) *MQTTEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "parking"
	}
	cfg.TopicPrefix = strings.TrimRight(cfg.TopicPrefix, "/")
	return &MQTTEmitter{
		cfg:       cfg,
		logger:    logger.With("component", "emitter"),
		published: make(map[string]uint64),
	}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect establishes the broker connection.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	e.logger.Info("connecting to mqtt broker", "broker", e.cfg.Broker)
	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	e.setConnected(true)
	return nil
}

// Subscribe attaches the emitter to s and returns the unsubscribe func.
func (e *MQTTEmitter) Subscribe(s *store.Store) func() {
	return s.Subscribe(e.Observe)
}

// Observe is a store.Listener. Publishing is asynchronous; the listener
// never waits on the broker.
func (e *MQTTEmitter) Observe(action store.Action, prev, next store.State) {
	lotID := ""
	if next.Lot != nil {
		lotID = next.Lot.LotID
	}

	switch a := action.(type) {
	case store.SetConnectionState:
		e.publish(e.cfg.TopicPrefix+"/connection", true, ConnectionMessage{State: a.State})
	case store.SetLot:
		e.publish(e.cfg.TopicPrefix+"/summary", true, SummaryMessage{LotID: lotID, Counts: store.CountOccupancy(next)})
	case store.UpdateSpot, store.SetSnapshot:
		changed := store.ChangedSpots(action, prev, next)
		for _, st := range changed {
			e.publish(e.cfg.TopicPrefix+"/spots/"+st.SpotID, false, SpotMessage{
				LotID:    lotID,
				SpotID:   st.SpotID,
				Occupied: st.Occupied,
				TS:       st.LastUpdated,
			})
		}
		if len(changed) > 0 {
			e.publish(e.cfg.TopicPrefix+"/summary", true, SummaryMessage{LotID: lotID, Counts: store.CountOccupancy(next)})
		}
	}
}

func (e *MQTTEmitter) publish(topic string, retained bool, msg any) {
	if !e.isConnected() {
		e.countError()
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		e.countError()
		e.logger.Error("failed to marshal message", "topic", topic, "error", err)
		return
	}

	token := e.client.Publish(topic, e.cfg.QoS, retained, payload)
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		if !token.WaitTimeout(2 * time.Second) {
			e.countError()
			e.logger.Warn("publish timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			e.countError()
			e.logger.Warn("publish failed", "topic", topic, "error", err)
			return
		}
		e.mu.Lock()
		e.published[topic]++
		e.mu.Unlock()
	}()
}

// Flush waits for outstanding publishes to complete.
func (e *MQTTEmitter) Flush() {
	e.pending.Wait()
}

// Disconnect flushes and closes the broker connection.
func (e *MQTTEmitter) Disconnect() {
	e.Flush()
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.logger.Info("mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats returns emitter statistics.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{Connected: e.connected, Published: published, Errors: e.errors}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
