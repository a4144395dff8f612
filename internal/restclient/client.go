// Package restclient talks to the parking backend's REST API: lot
// definitions, occupancy lists and account endpoints.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/macapark/dashboard/internal/models"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// ErrNoLot is returned when the backend reports no lots.
var ErrNoLot = errors.New("backend returned no lot")

// StatusError is a non-2xx response. Message is taken from the body's
// "message" or "error" field when present.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("restclient: %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a REST client bound to one backend base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New validates the base URL and returns a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("restclient: base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("restclient: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("restclient: base URL %q must use http or https", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("component", "restclient"),
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchLots returns every lot the backend reports. The endpoint may answer
// with a single object or an array.
func (c *Client) FetchLots(ctx context.Context) ([]models.LotDefinition, error) {
	body, err := c.do(ctx, http.MethodGet, "/lot", "", nil)
	if err != nil {
		return nil, err
	}
	return decodeLots(body)
}

// FetchAvailableLots returns the lots offered by the backend's
// /lot/available endpoint. token may be empty.
func (c *Client) FetchAvailableLots(ctx context.Context, token string) ([]models.LotDefinition, error) {
	body, err := c.do(ctx, http.MethodGet, "/lot/available", token, nil)
	if err != nil {
		return nil, err
	}
	return decodeLots(body)
}

func decodeLots(body []byte) ([]models.LotDefinition, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var lot models.LotDefinition
		if err := json.Unmarshal(body, &lot); err != nil {
			return nil, fmt.Errorf("restclient: decode lot: %w", err)
		}
		return []models.LotDefinition{lot}, nil
	}
	var lots []models.LotDefinition
	if err := json.Unmarshal(body, &lots); err != nil {
		return nil, fmt.Errorf("restclient: decode lots: %w", err)
	}
	return lots, nil
}

// FetchCurrentLot returns the first lot the backend reports.
func (c *Client) FetchCurrentLot(ctx context.Context) (*models.LotDefinition, error) {
	lots, err := c.FetchLots(ctx)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return nil, ErrNoLot
	}
	lot := lots[0]
	c.logger.Debug("fetched lot", "lot_id", lot.LotID, "spots", len(lot.Spots))
	return &lot, nil
}

// FetchOccupancy returns the occupancy list of a lot.
func (c *Client) FetchOccupancy(ctx context.Context, lotID string) ([]models.SpotOccupancy, error) {
	body, err := c.do(ctx, http.MethodGet, "/lot/"+url.PathEscape(lotID)+"/occupancy", "", nil)
	if err != nil {
		return nil, err
	}
	var spots []models.SpotOccupancy
	if err := json.Unmarshal(body, &spots); err != nil {
		return nil, fmt.Errorf("restclient: decode occupancy: %w", err)
	}
	return spots, nil
}

// UpdateLot replaces a lot on the backend and returns the stored version.
// A response without a body returns the submitted lot.
func (c *Client) UpdateLot(ctx context.Context, token string, lot *models.LotDefinition) (*models.LotDefinition, error) {
	if lot == nil || lot.LotID == "" {
		return nil, errors.New("restclient: lot id is required")
	}
	body, err := c.do(ctx, http.MethodPut, "/lot/"+url.PathEscape(lot.LotID), token, lot)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return lot, nil
	}
	var updated models.LotDefinition
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, fmt.Errorf("restclient: decode updated lot: %w", err)
	}
	return &updated, nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the account behind token.
func (c *Client) Me(ctx context.Context, token string) (*models.MeResponse, error) {
	var resp models.MeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, reqBody, out any) error {
	body, err := c.do(ctx, method, path, token, reqBody)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("restclient: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("restclient: encode request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("restclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("restclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("restclient: read %s response: %w", path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp, body),
	}
}

func errorMessage(resp *http.Response, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("Request failed (%d)", resp.StatusCode)
}
