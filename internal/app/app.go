package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/common"
	"github.com/ternarybob/sitebatch/internal/handlers"
	"github.com/ternarybob/sitebatch/internal/interfaces"
	"github.com/ternarybob/sitebatch/internal/services/aggregator"
	"github.com/ternarybob/sitebatch/internal/services/archive"
	"github.com/ternarybob/sitebatch/internal/services/bridge"
	"github.com/ternarybob/sitebatch/internal/services/bus"
	"github.com/ternarybob/sitebatch/internal/services/render"
	"github.com/ternarybob/sitebatch/internal/services/scheduler"
	"github.com/ternarybob/sitebatch/internal/services/workers"
	badgerstorage "github.com/ternarybob/sitebatch/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	ctx       context.Context
	cancelCtx context.CancelFunc

	// Storage
	DB           *badgerstorage.BadgerDB
	GroupStorage interfaces.GroupStorage

	// Core services
	Bus        interfaces.NotificationBus
	Archiver   interfaces.Archiver
	Aggregator interfaces.StatusAggregator
	Bridge     interfaces.ExecutionBridge
	Renderer   interfaces.Renderer
	Pool       *workers.Pool
	Scheduler  *scheduler.Service

	// HTTP handlers
	APIHandler         *handlers.APIHandler
	GroupHandler       *handlers.GroupHandler
	MaintenanceHandler *handlers.MaintenanceHandler
	WSHandler          *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Int("workers", cfg.Workers.Concurrency).
		Str("results_dir", cfg.Archive.ResultsDir).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	db, err := badgerstorage.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open badger store: %w", err)
	}

	a.DB = db
	a.GroupStorage = badgerstorage.NewGroupStorage(db, a.Logger)
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices wires the notification bus, archive manager, aggregation and
// execution services
func (a *App) initServices() error {
	a.Bus = bus.NewService(&a.Config.WebSocket, a.Logger)

	archiver, err := archive.NewManager(&a.Config.Archive, a.GroupStorage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize archive manager: %w", err)
	}
	a.Archiver = archiver

	a.Aggregator = aggregator.NewService(a.GroupStorage, a.Archiver, a.Bus, a.Logger)
	a.Bridge = bridge.NewService(a.GroupStorage, a.Aggregator, a.Bus, a.Logger)
	a.Renderer = render.NewService(&a.Config.Archive, a.Logger)
	a.Pool = workers.NewPool(&a.Config.Workers, a.GroupStorage, a.Bridge, a.Renderer, a.Logger)
	a.Scheduler = scheduler.NewService(&a.Config.Maintenance, a.Archiver, a.Aggregator, a.Logger)

	return nil
}

// initHandlers creates the HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.GroupHandler = handlers.NewGroupHandler(a.GroupStorage, a.Bus, a.Archiver, a.Aggregator, a.Pool, a.Logger)
	a.MaintenanceHandler = handlers.NewMaintenanceHandler(a.Scheduler, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Bus, a.Logger)
}

// Start launches the worker pool and the maintenance scheduler
func (a *App) Start() error {
	a.Pool.Start(a.ctx)
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close shuts down components in reverse dependency order
func (a *App) Close() error {
	a.Scheduler.Stop()
	a.Pool.Stop()
	a.cancelCtx()
	a.Bus.Close()

	// GroupStorage.Close would close the same badgerhold store; the
	// connection owner closes it once
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
