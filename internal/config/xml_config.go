// Package config provides XML-based configuration for the dashboard server.
package config

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/macapark/dashboard/internal/models"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"ParkingDashboard"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Upstream parking backend
	Parking ParkingConfig `xml:"Parking"`

	// Occupancy history database
	History HistoryConfig `xml:"History"`

	// MQTT republishing
	MQTT MQTTConfig `xml:"MQTT"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`

	path string
	mu   sync.Mutex
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	LotFileDirectory string `xml:"LotFileDirectory"`
	MaxImportSize    string `xml:"MaxImportSize"`
}

// ParkingConfig points at the parking backend and tunes live sync.
type ParkingConfig struct {
	RestBaseURL            string `xml:"RestBaseURL"`
	WebSocketURL           string `xml:"WebSocketURL"`
	InitialBackoffMs       int    `xml:"InitialBackoffMs"`
	MaxBackoffMs           int    `xml:"MaxBackoffMs"`
	PollIntervalSeconds    int    `xml:"PollIntervalSeconds"`
	SnapshotPolicy         string `xml:"SnapshotPolicy"`
	TreatUnknownAsOccupied bool   `xml:"TreatUnknownAsOccupied"`
	RequestTimeoutSeconds  int    `xml:"RequestTimeoutSeconds"`
}

// HistoryConfig selects the occupancy history database.
type HistoryConfig struct {
	Enabled bool   `xml:"Enabled"`
	Driver  string `xml:"Driver"`
	DSN     string `xml:"DSN"`
}

// MQTTConfig configures occupancy republishing.
type MQTTConfig struct {
	Enabled     bool   `xml:"Enabled"`
	Broker      string `xml:"Broker"`
	ClientID    string `xml:"ClientID"`
	TopicPrefix string `xml:"TopicPrefix"`
	QoS         int    `xml:"QoS"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
	GuidanceCacheEnabled    bool   `xml:"GuidanceCacheEnabled"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "32M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			LotFileDirectory: "./data/lots",
			MaxImportSize:    "32M",
		},
		Parking: ParkingConfig{
			InitialBackoffMs:      1000,
			MaxBackoffMs:          30000,
			PollIntervalSeconds:   0,
			SnapshotPolicy:        "merge",
			RequestTimeoutSeconds: 15,
		},
		History: HistoryConfig{
			Enabled: false,
			Driver:  "duckdb",
			DSN:     "./data/history.duckdb",
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "localhost:1883",
			ClientID:    "parking-dashboard",
			TopicPrefix: "parking",
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 64,
			GuidanceCacheEnabled:    true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	config.path = configPath

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Parking Dashboard Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Path returns the file the config was loaded from.
func (c *AppConfig) Path() string {
	return c.path
}

// ParkingSettings returns the endpoint pair handed to the live clients.
func (c *AppConfig) ParkingSettings() models.ParkingSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.ParkingSettings{
		RestBaseURL: c.Parking.RestBaseURL,
		WSURL:       c.Parking.WebSocketURL,
	}
}

// SaveParkingSettings updates the endpoints and writes them to the config
// file. Only the Parking URLs are rewritten; the rest of the file keeps
// what is on disk, so environment overrides are never persisted.
func (c *AppConfig) SaveParkingSettings(s models.ParkingSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Parking.RestBaseURL = s.RestBaseURL
	c.Parking.WebSocketURL = s.WSURL
	if c.path == "" {
		return nil
	}

	onDisk := DefaultConfig()
	if data, err := os.ReadFile(c.path); err == nil {
		if err := xml.Unmarshal(data, onDisk); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	onDisk.Parking.RestBaseURL = s.RestBaseURL
	onDisk.Parking.WebSocketURL = s.WSURL
	return onDisk.Save(c.path)
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.LotFileDirectory = filepath.Join(dataDir, "lots")
	}

	if v := os.Getenv("PARKING_REST_URL"); v != "" {
		c.Parking.RestBaseURL = v
	}
	if v := os.Getenv("PARKING_WS_URL"); v != "" {
		c.Parking.WebSocketURL = v
	}
	if v := os.Getenv("HISTORY_DSN"); v != "" {
		c.History.DSN = v
		c.History.Enabled = true
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
		c.MQTT.Enabled = true
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.LotFileDirectory) {
		c.Storage.LotFileDirectory = filepath.Join(configDir, c.Storage.LotFileDirectory)
	}
	// Postgres DSNs are URLs or key=value strings, not paths.
	if c.History.Driver == "duckdb" && c.History.DSN != "" && !filepath.IsAbs(c.History.DSN) {
		c.History.DSN = filepath.Join(configDir, c.History.DSN)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetLotFileDir returns the absolute lot file directory path
func (c *AppConfig) GetLotFileDir() string {
	return c.Storage.LotFileDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// InitialBackoff returns the first reconnect delay.
func (c *AppConfig) InitialBackoff() time.Duration {
	return time.Duration(c.Parking.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the reconnect delay cap.
func (c *AppConfig) MaxBackoff() time.Duration {
	return time.Duration(c.Parking.MaxBackoffMs) * time.Millisecond
}

// PollInterval returns the REST occupancy poll interval; zero disables polling.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Parking.PollIntervalSeconds) * time.Second
}

// RequestTimeout returns the REST request timeout.
func (c *AppConfig) RequestTimeout() time.Duration {
	if c.Parking.RequestTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Parking.RequestTimeoutSeconds) * time.Second
}

// ImportLimit parses Storage.MaxImportSize ("32M", "512K", "1G" or plain
// bytes). Unparseable values fall back to 32 MiB.
func (c *AppConfig) ImportLimit() int64 {
	n, err := ParseSize(c.Storage.MaxImportSize)
	if err != nil || n <= 0 {
		return 32 << 20
	}
	return n
}

// ParseSize reads a byte count with an optional K, M or G suffix.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * mult, nil
}

// SlogLevel maps Advanced.LogLevel to a slog level.
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Advanced.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.LotFileDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
