package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/macapark/dashboard/internal/livesync"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/store"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsSendBuffer     = 64
	wsDefaultMaxSize = 64 * 1024
)

// MsgTypeError is sent to a downstream client that sent an unusable request
const MsgTypeError = "error"

// WSErrorResponse is the body of an error frame
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Hub fans store changes out to downstream WebSocket clients using the
// same frames the upstream push channel speaks: snapshot, spot_update and
// connection. Clients may send get_snapshot and ping.
type Hub struct {
	state    *store.Store
	logger   *slog.Logger
	upgrader websocket.Upgrader
	maxSize  int64

	mu      sync.RWMutex
	clients map[string]*hubClient

	unsubscribe func()
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub subscribed to state. Call Close to detach it.
func NewHub(state *store.Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		state:  state,
		logger: logger.With("component", "ws-hub"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		maxSize: wsDefaultMaxSize,
		clients: make(map[string]*hubClient),
	}
	h.unsubscribe = state.Subscribe(h.Observe)
	return h
}

// SetMaxMessageSize bounds inbound client frames.
func (h *Hub) SetMaxMessageSize(n int64) {
	if n > 0 {
		h.maxSize = n
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the store and disconnects every client.
func (h *Hub) Close() {
	h.unsubscribe()
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

// Observe is the store listener that broadcasts changes.
func (h *Hub) Observe(action store.Action, prev, next store.State) {
	var frame []byte
	switch a := action.(type) {
	case store.UpdateSpot:
		frame = mustJSON(livesync.SpotUpdateMessage{
			Type:     livesync.TypeSpotUpdate,
			SpotID:   a.SpotID,
			Occupied: a.Occupied,
			TS:       a.TS,
		})
	case store.SetSnapshot:
		frame = snapshotFrame(next, a.TS)
	case store.SetLot:
		frame = snapshotFrame(next, "")
	case store.SetConnectionState:
		frame = connectionFrame(next.ConnectionState)
	default:
		return
	}
	h.broadcast(frame)
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.enqueue(c, frame)
	}
}

// enqueue never blocks; a client whose buffer is full is disconnected.
func (h *Hub) enqueue(c *hubClient, frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		h.logger.Warn("dropping slow client", "client", c.id)
		c.close()
	}
}

// HandleWebSocket upgrades the request and serves one downstream client
// until it disconnects.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &hubClient{
		id:   uuid.New().String(),
		conn: ws,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.enqueue(client, connectionFrame(h.state.Snapshot().ConnectionState))
	h.mu.Unlock()
	h.logger.Info("client connected", "client", client.id)

	go h.writePump(client)
	h.readPump(client)

	h.mu.Lock()
	delete(h.clients, client.id)
	h.mu.Unlock()
	client.close()
	h.logger.Info("client disconnected", "client", client.id)
	return nil
}

func (h *Hub) readPump(c *hubClient) {
	c.conn.SetReadLimit(h.maxSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read failed", "client", c.id, "error", err)
			}
			return
		}
		select {
		case <-c.done:
			return
		default:
		}

		msgType, err := livesync.DecodeRequest(data)
		if err != nil {
			h.sendTo(c, mustJSON(WSErrorResponse{Type: MsgTypeError, Message: err.Error(), Code: "INVALID_MESSAGE"}))
			continue
		}
		switch msgType {
		case livesync.TypeGetSnapshot:
			// Exclusive lock so no broadcast slips between the state read
			// and the enqueue.
			h.mu.Lock()
			h.enqueue(c, snapshotFrame(h.state.Snapshot(), time.Now().UTC().Format(time.RFC3339)))
			h.mu.Unlock()
		case livesync.TypePing:
			h.sendTo(c, mustJSON(livesync.RequestMessage{Type: livesync.TypePong}))
		default:
			h.sendTo(c, mustJSON(WSErrorResponse{Type: MsgTypeError, Message: "Unknown message type: " + msgType, Code: "INVALID_TYPE"}))
		}
	}
}

func (h *Hub) sendTo(c *hubClient, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.enqueue(c, frame)
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func snapshotFrame(s store.State, ts string) []byte {
	spots := make([]models.SpotOccupancy, 0, len(s.SpotStates))
	for id, st := range s.SpotStates {
		spots = append(spots, models.SpotOccupancy{SpotID: id, Occupied: st.Occupied})
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].SpotID < spots[j].SpotID })
	return mustJSON(livesync.SnapshotMessage{
		Type:  livesync.TypeSnapshot,
		Spots: spots,
		TS:    ts,
	})
}

func connectionFrame(state models.ConnectionState) []byte {
	return mustJSON(livesync.ConnectionMessage{Type: livesync.TypeConnection, State: state})
}

// mustJSON marshals types that cannot fail to encode.
func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
