// Package app wires the long-lived Folio services together. One App is built
// per process and shared by reference with the HTTP server and CLI commands.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/clients/gfinance"
	"github.com/bobmcallan/folio/internal/clients/yahoo"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/metrics"
	"github.com/bobmcallan/folio/internal/portfolio"
	"github.com/bobmcallan/folio/internal/services/events"
	"github.com/bobmcallan/folio/internal/services/refresh"
	"github.com/bobmcallan/folio/internal/services/snapshot"
)

// App holds all initialized services and clients.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Metrics     *metrics.Metrics
	Cache       *cache.Store
	Portfolio   *portfolio.Source
	Prices      *yahoo.Client
	Ratios      *gfinance.Client
	Refresh     *refresh.Coordinator
	Scheduler   *refresh.Scheduler
	Snapshots   *snapshot.Assembler
	Events      *events.Hub
	StartupTime time.Time

	closed bool
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, then FOLIO_CONFIG,
// then folio.toml next to the binary, then config/folio.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and builds the App. configPath may be empty.
func NewApp(configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return New(config, common.NewLoggerFromConfig(config.Logging))
}

// New builds the App from an already loaded config. A portfolio that cannot
// be loaded is an error.
func New(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	m := metrics.New()
	store := cache.NewStore(cache.WithMetrics(m))

	source, err := portfolio.Load(config.Portfolio, logger)
	if err != nil {
		return nil, err
	}

	prices := yahoo.NewClient(
		yahoo.WithBaseURL(config.Clients.Yahoo.BaseURL),
		yahoo.WithTimeout(config.Clients.Yahoo.GetTimeout()),
		yahoo.WithLogger(logger),
	)
	ratios := gfinance.NewClient(
		gfinance.WithBaseURL(config.Clients.Google.BaseURL),
		gfinance.WithExchange(config.Clients.Google.Exchange),
		gfinance.WithTimeout(config.Clients.Google.GetTimeout()),
		gfinance.WithLogger(logger),
	)

	hub := events.NewHub(logger)
	go hub.Run()

	coordinator := refresh.NewCoordinator(
		source, prices, ratios, store,
		refresh.OptionsFromConfig(config),
		logger,
		refresh.WithMetrics(m),
		refresh.WithNotifier(hub),
	)

	a := &App{
		Config:      config,
		Logger:      logger,
		Metrics:     m,
		Cache:       store,
		Portfolio:   source,
		Prices:      prices,
		Ratios:      ratios,
		Refresh:     coordinator,
		Scheduler:   refresh.NewScheduler(coordinator, config.Refresh.Interval(), config.Refresh.RunOnStart, logger),
		Snapshots:   snapshot.NewAssembler(source, store, logger),
		Events:      hub,
		StartupTime: startupStart,
	}

	logger.Info().
		Int("holdings", source.Len()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// StartScheduler launches the background refresh scheduler.
func (a *App) StartScheduler(ctx context.Context) {
	a.Scheduler.Start(ctx)
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler (waiting for an in-flight cycle), stop event hub.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Events != nil {
		a.Events.Stop()
	}
}
