package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/pflag"

	"github.com/macapark/dashboard/internal/api"
	"github.com/macapark/dashboard/internal/config"
	"github.com/macapark/dashboard/internal/dashboard"
	"github.com/macapark/dashboard/internal/emitter"
	"github.com/macapark/dashboard/internal/guidance"
	"github.com/macapark/dashboard/internal/history"
	"github.com/macapark/dashboard/internal/storage"
	"github.com/macapark/dashboard/internal/store"
	"github.com/macapark/dashboard/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const defaultConfigName = "ParkingDashboard.config"

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the XML config file (default: next to the executable)")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("parking-dashboard %s (built %s)\n", Version, BuildTime)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Printf("[Server] %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		configPath = filepath.Join(filepath.Dir(exePath), defaultConfigName)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	api.ShowErrorDetails = cfg.SlogLevel() <= slog.LevelDebug

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := store.New(store.WithSnapshotPolicy(store.ParseSnapshotPolicy(cfg.Parking.SnapshotPolicy)))

	fileStore, err := storage.NewLocalStore(cfg.GetLotFileDir())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Occupancy history
	var historyStore api.HistoryStore
	if cfg.History.Enabled {
		db, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			fmt.Printf("[History] Warning: history disabled: %v\n", err)
		} else {
			defer db.Close()
			recorder := history.NewRecorder(db, nil, logger)
			defer recorder.Close()
			defer recorder.Subscribe(state)()
			historyStore = recorder
			fmt.Printf("[History] Recording occupancy to %s\n", cfg.History.Driver)
		}
	}

	// MQTT republishing
	if cfg.MQTT.Enabled {
		em := emitter.New(emitter.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		}, logger)
		if err := em.Connect(ctx); err != nil {
			fmt.Printf("[MQTT] Warning: %v (retrying in background)\n", err)
		}
		defer em.Disconnect()
		defer em.Subscribe(state)()
	}

	provider := dashboard.New(state, dashboard.Options{
		InitialBackoff: cfg.InitialBackoff(),
		MaxBackoff:     cfg.MaxBackoff(),
		PollInterval:   cfg.PollInterval(),
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger,
	})
	defer provider.Stop()

	handlers := api.NewHandlers(&api.Dependencies{
		State:                state,
		Backend:              provider,
		Files:                fileStore,
		Settings:             cfg,
		History:              historyStore,
		Guidance:             guidance.Options{TreatUnknownAsOccupied: cfg.Parking.TreatUnknownAsOccupied},
		DisableGuidanceCache: !cfg.Advanced.GuidanceCacheEnabled,
		ImportLimit:          cfg.ImportLimit(),
		Version:              Version,
		Logger:               logger,
	})
	handlers.Hub.SetMaxMessageSize(int64(cfg.Advanced.WebSocketMaxMessageSize) * 1024)
	defer handlers.Hub.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		BodyLimit:      cfg.Server.BodyLimit,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   strings.Split(cfg.Server.AllowOrigins, ","),
	})
	api.RegisterRoutes(e, handlers)

	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		staticFS, err := web.GetFileSystem()
		if err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		} else {
			web.RegisterStaticRoutes(e, staticFS)
			fmt.Println("Serving embedded frontend from binary")
		}
	}

	settings := cfg.ParkingSettings()
	provider.Start(ctx, settings)
	if msg := state.Snapshot().ErrorString(); msg != "" {
		fmt.Printf("[Parking] %s\n", msg)
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath, settings.RestBaseURL, settings.WSURL, embeddedMode)

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	fmt.Println("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("[Server] Shutdown error: %v\n", err)
	}
	return nil
}

func printBanner(cfg *config.AppConfig, configPath, restURL, wsURL string, embedded bool) {
	mode := "API only"
	if embedded {
		mode = "Embedded frontend"
	}
	orNone := func(s string) string {
		if s == "" {
			return "(not configured)"
		}
		return s
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Parking Dashboard Server                        ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  REST:      %-46s║\n", orNone(restURL))
	fmt.Printf("║  Push:      %-46s║\n", orNone(wsURL))
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
