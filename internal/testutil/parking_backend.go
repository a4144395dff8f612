// parking_backend.go - Fake parking backend serving REST and the push channel
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/macapark/dashboard/internal/models"
)

// ParkingBackend is an httptest server that speaks the parking backend's
// REST contract and push protocol. Accounts are kept in memory; tokens are
// "token-" followed by the email.
type ParkingBackend struct {
	Server *httptest.Server

	upgrader websocket.Upgrader

	mu                sync.Mutex
	lot               *models.LotDefinition
	occupancy         []models.SpotOccupancy
	users             map[string]account
	conns             []*websocket.Conn
	snapshotRequests  int
	failLot           int
	connectionsChange chan struct{}
}

type account struct {
	user     models.User
	password string
}

// NewParkingBackend starts a backend serving lot. It is closed when the
// test ends.
func NewParkingBackend(t *testing.T, lot *models.LotDefinition) *ParkingBackend {
	t.Helper()
	b := &ParkingBackend{
		lot:               lot,
		users:             make(map[string]account),
		connectionsChange: make(chan struct{}, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /lot", b.handleGetLot)
	mux.HandleFunc("GET /lot/available", b.handleAvailableLots)
	mux.HandleFunc("PUT /lot/{id}", b.handlePutLot)
	mux.HandleFunc("GET /lot/{id}/occupancy", b.handleOccupancy)
	mux.HandleFunc("POST /auth/register", b.handleRegister)
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("GET /auth/me", b.handleMe)
	mux.HandleFunc("GET /ws", b.handlePush)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

// RESTURL is the base URL for the REST client.
func (b *ParkingBackend) RESTURL() string { return b.Server.URL }

// WSURL is the push channel URL.
func (b *ParkingBackend) WSURL() string {
	return "ws" + strings.TrimPrefix(b.Server.URL, "http") + "/ws"
}

// Close drops every push connection and stops the server.
func (b *ParkingBackend) Close() {
	b.DropConnections()
	b.Server.Close()
}

// SetOccupancy replaces what occupancy requests and snapshots return.
func (b *ParkingBackend) SetOccupancy(spots []models.SpotOccupancy) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.occupancy = append([]models.SpotOccupancy(nil), spots...)
}

// FailLot makes the next n lot requests fail with 500.
func (b *ParkingBackend) FailLot(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failLot = n
}

// Lot returns the lot as last stored.
func (b *ParkingBackend) Lot() *models.LotDefinition {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lot
}

// AddUser registers an account directly.
func (b *ParkingBackend) AddUser(name, email, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[email] = account{
		user:     models.User{ID: "user-" + email, Name: name, Email: email},
		password: password,
	}
}

// Connections returns the number of open push connections.
func (b *ParkingBackend) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// SnapshotRequests returns how many get_snapshot frames were received.
func (b *ParkingBackend) SnapshotRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotRequests
}

// WaitForConnections blocks until n push connections are open or timeout
// passes.
func (b *ParkingBackend) WaitForConnections(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if b.Connections() >= n {
			return true
		}
		select {
		case <-b.connectionsChange:
		case <-deadline:
			return false
		}
	}
}

// Push sends a raw frame to every push connection.
func (b *ParkingBackend) Push(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

// PushJSON marshals v and pushes it.
func (b *ParkingBackend) PushJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Push(data)
}

// DropConnections closes every push connection without a close frame.
func (b *ParkingBackend) DropConnections() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	b.notify()
}

func (b *ParkingBackend) notify() {
	select {
	case b.connectionsChange <- struct{}{}:
	default:
	}
}

func (b *ParkingBackend) handleGetLot(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	lot, fail := b.lot, b.failLot > 0
	if fail {
		b.failLot--
	}
	b.mu.Unlock()

	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "database unavailable"})
		return
	}
	if lot == nil {
		writeJSON(w, http.StatusOK, []models.LotDefinition{})
		return
	}
	writeJSON(w, http.StatusOK, []models.LotDefinition{*lot})
}

// handleAvailableLots lists the current lot. A bearer token is optional
// but must be valid when sent.
func (b *ParkingBackend) handleAvailableLots(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		if _, ok := b.userFor(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
	}
	b.mu.Lock()
	lot := b.lot
	b.mu.Unlock()
	lots := []models.LotDefinition{}
	if lot != nil {
		lots = append(lots, *lot)
	}
	writeJSON(w, http.StatusOK, lots)
}

func (b *ParkingBackend) handlePutLot(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.userFor(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	var lot models.LotDefinition
	if err := json.NewDecoder(r.Body).Decode(&lot); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	lot.LotID = r.PathValue("id")
	lot.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	b.mu.Lock()
	b.lot = &lot
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, lot)
}

func (b *ParkingBackend) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	spots := append([]models.SpotOccupancy{}, b.occupancy...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, spots)
}

func (b *ParkingBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	b.mu.Lock()
	_, exists := b.users[req.Email]
	b.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Email already registered"})
		return
	}
	b.AddUser(req.Name, req.Email, req.Password)
	b.mu.Lock()
	user := b.users[req.Email].user
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, models.AuthResponse{Token: "token-" + req.Email, User: user})
}

func (b *ParkingBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	b.mu.Lock()
	acct, ok := b.users[req.Email]
	b.mu.Unlock()
	if !ok || acct.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, models.AuthResponse{Token: "token-" + req.Email, User: acct.user})
}

func (b *ParkingBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := b.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, models.MeResponse{User: user})
}

func (b *ParkingBackend) userFor(r *http.Request) (models.User, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	email, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return models.User{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.users[email]
	return acct.user, ok
}

func (b *ParkingBackend) handlePush(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()
	b.notify()

	defer func() {
		b.mu.Lock()
		for i, c := range b.conns {
			if c == conn {
				b.conns = append(b.conns[:i], b.conns[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		conn.Close()
		b.notify()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &req) != nil || req.Type != "get_snapshot" {
			continue
		}

		b.mu.Lock()
		b.snapshotRequests++
		frame, _ := json.Marshal(map[string]any{
			"type":  "snapshot",
			"spots": append([]models.SpotOccupancy{}, b.occupancy...),
			"ts":    time.Now().UTC().Format(time.RFC3339),
		})
		err = conn.WriteMessage(websocket.TextMessage, frame)
		b.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
