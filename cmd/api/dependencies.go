package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/hotelops/ota-reconciliation/internal/domain/booking"
	"github.com/hotelops/ota-reconciliation/internal/domain/dashboard"
	"github.com/hotelops/ota-reconciliation/internal/domain/history"
	"github.com/hotelops/ota-reconciliation/internal/domain/upload"
	"github.com/hotelops/ota-reconciliation/pkg/config"
	"github.com/hotelops/ota-reconciliation/pkg/cron"
	"github.com/hotelops/ota-reconciliation/pkg/db"
	"github.com/hotelops/ota-reconciliation/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	BookingRepo   *booking.PostgresRepository
	UploadRepo    *upload.PostgresRepository
	HistoryRepo   *history.PostgresRepository
	DashboardRepo *dashboard.PostgresRepository

	// Services
	BookingService   *booking.Service
	UploadService    *upload.Service
	HistoryService   *history.Service
	DashboardService *dashboard.Service
	FileStorage      storage.ObjectStore
	Sessions         *upload.SessionStore
	Scheduler        *cron.Scheduler

	// Handlers
	BookingHandler   *booking.Handler
	UploadHandler    *upload.Handler
	HistoryHandler   *history.Handler
	DashboardHandler *dashboard.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	deps.initRepositories()
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.BookingRepo = booking.NewPostgresRepository(d.DB.Pool)
	d.UploadRepo = upload.NewPostgresRepository(d.DB.Pool)
	d.HistoryRepo = history.NewPostgresRepository(d.DB.Pool)
	d.DashboardRepo = dashboard.NewPostgresRepository(d.DB.Pool)
	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	fileStorage, err := storage.New(&d.Config.Storage)
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.BookingService = booking.NewService(d.BookingRepo, d.Logger)

	// History reverts cells through the booking service; booking logs edits
	// through the history service.
	d.HistoryService = history.NewService(d.HistoryRepo, d.BookingService, d.Logger)
	d.BookingService.WithEditLogger(d.HistoryService)

	d.Sessions = upload.NewSessionStore(upload.DefaultSessionTTL)
	d.UploadService = upload.NewService(
		d.UploadRepo,
		d.BookingRepo,
		d.FileStorage,
		d.Sessions,
		upload.NewMetrics(prometheus.DefaultRegisterer),
		otel.Tracer("ota-reconciliation"),
		d.Logger,
	)
	d.UploadService.WithEditTrailDeleter(d.HistoryService)

	d.DashboardService = dashboard.NewService(d.DashboardRepo, d.Logger)

	if d.Config.Sweep.Enabled {
		d.Scheduler = cron.NewScheduler(d.Config.Sweep.Schedule, d.BookingRepo, d.Sessions, d.Logger)
	}

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.BookingHandler = booking.NewHandler(d.BookingService, d.Logger)
	d.UploadHandler = upload.NewHandler(d.UploadService, d.Logger)
	d.HistoryHandler = history.NewHandler(d.HistoryService, d.Logger)
	d.DashboardHandler = dashboard.NewHandler(d.DashboardService, d.Logger)
	d.Logger.Info("handlers initialized")
}
