package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasker/internal/config"
	"github.com/phrazzld/tasker/internal/platform/logger"
	"github.com/phrazzld/tasker/internal/platform/postgres"
	"github.com/phrazzld/tasker/internal/scheduler"
	"github.com/phrazzld/tasker/internal/service"
	"github.com/phrazzld/tasker/internal/task"
)

// application holds the wired-together components of the server. Its
// lifetime spans from initializeApp until cleanup.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	db          *sql.DB
	sched       *scheduler.Scheduler
	dispatcher  *task.Dispatcher
	taskService service.TaskService

	// cancelBackground stops the scheduler timer loop.
	cancelBackground context.CancelFunc
}

// initializeApp builds the full application: configuration, logging,
// database (with migrations), scheduler, dispatcher and services.
//
// Recovery runs here, before the HTTP listener opens: every pending
// task in the database is back on the in-memory timeline by the time
// the first request can arrive.
func initializeApp(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Scheduler.WorkerCount)

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return nil, err
	}

	if err := postgres.RunMigrations(db, appLogger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db)
	clock := scheduler.RealClock{}
	sched := scheduler.New(clock, appLogger)

	if err := task.RecoverPending(ctx, taskStore, sched, clock, appLogger); err != nil {
		return nil, fmt.Errorf("failed to recover pending tasks: %w", err)
	}

	backgroundCtx, cancelBackground := context.WithCancel(context.Background())
	go sched.Run(backgroundCtx)

	executors := []task.Executor{
		task.NewWebhookExecutor(cfg.Webhook, appLogger),
		task.NewHashExecutor(appLogger),
	}
	dispatcher := task.NewDispatcher(
		taskStore,
		sched.Due(),
		executors,
		task.DispatcherConfig{WorkerCount: cfg.Scheduler.WorkerCount},
		appLogger,
	)
	dispatcher.Start()

	taskService, err := service.NewTaskService(taskStore, sched, appLogger)
	if err != nil {
		cancelBackground()
		dispatcher.Stop()
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	return &application{
		config:           cfg,
		logger:           appLogger,
		db:               db,
		sched:            sched,
		dispatcher:       dispatcher,
		taskService:      taskService,
		cancelBackground: cancelBackground,
	}, nil
}

// cleanup stops background work and releases resources. Order matters:
// the dispatcher drains in-flight executions before the database
// connection closes underneath them.
func (app *application) cleanup() {
	app.cancelBackground()
	app.dispatcher.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("Failed to close database connection", "error", err)
	}
}
