package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "go.temporal.io/sdk/client"
	tw "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/smartkubik/import-api/internal/authz"
	"github.com/smartkubik/import-api/internal/config"
	"github.com/smartkubik/import-api/internal/handlers"
	"github.com/smartkubik/import-api/internal/importer/entities"
	"github.com/smartkubik/import-api/internal/importer/orchestrator"
	"github.com/smartkubik/import-api/internal/middleware"
	"github.com/smartkubik/import-api/internal/migration"
	"github.com/smartkubik/import-api/internal/notification"
	"github.com/smartkubik/import-api/internal/realtime"
	"github.com/smartkubik/import-api/internal/repository"
	"github.com/smartkubik/import-api/internal/routes"
	"github.com/smartkubik/import-api/internal/temporal"
	"github.com/smartkubik/import-api/internal/temporal/activities"
	"github.com/smartkubik/import-api/internal/temporal/workflows"
	"github.com/smartkubik/import-api/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config *config.Config
	db     *sql.DB
	logger zerolog.Logger

	hub            *realtime.Hub
	publisher      realtime.Publisher
	notifications  notification.Service
	orchestrator   *orchestrator.Orchestrator
	temporalClient tc.Client
	temporalWorker tw.Worker
}

// background is a long-running loop started with the server and stopped on shutdown.
type background interface {
	Start(ctx context.Context) error
}

func main() {
	logger := newLogger(config.LogConfig{Level: "info"})
	log.SetFlags(0)
	log.SetOutput(logger)

	cfg := config.Load()
	logger = newLogger(cfg.Log)
	log.SetOutput(logger)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	if err := migration.RunMigrations(db, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	app := &application{config: cfg, db: db, logger: logger}
	app.initRealtime()
	app.initImports()

	var loops []background
	if app.temporalClient == nil {
		runner := worker.NewRunner(app.orchestrator, worker.RunnerConfig{
			Workers:   cfg.Import.Workers,
			QueueSize: cfg.Import.QueueSize,
		}, logger)
		app.orchestrator.SetRunner(runner)
		loops = append(loops, runner)
	} else {
		defer app.temporalClient.Close()
	}
	loops = append(loops, worker.NewReaper(worker.ReaperConfig{
		Interval:   cfg.Import.ReapInterval,
		StaleAfter: cfg.Import.StaleAfter,
	}, repository.NewImportJobRepository(db), app.notifierFor(), logger))
	if bus, ok := app.publisher.(*realtime.RedisBus); ok {
		loops = append(loops, bus)
	}

	router := app.initRouter()
	loggedRouter := middleware.LoggingMiddleware(logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORSOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	app.startServer(corsHandler, loops)

	logger.Info().Msg("Application terminated.")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	if strings.EqualFold(cfg.Format, "json") {
		out = os.Stdout
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return zerolog.New(out).With().Timestamp().Logger()
}

// initRealtime sets up the socket hub and, when redis is enabled, the bus that fans events
// out to every instance.
func (app *application) initRealtime() {
	app.hub = realtime.NewHub(app.logger)
	app.publisher = app.hub
	if !app.config.Redis.Enabled {
		return
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        app.config.Redis.Addr,
		Password:    app.config.Redis.Password,
		DB:          app.config.Redis.DB,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		app.logger.Fatal().Err(err).Str("addr", app.config.Redis.Addr).Msg("Unable to reach redis")
	}
	app.publisher = realtime.NewRedisBus(rdb, app.config.Redis.Channel, app.hub, app.logger)
}

func (app *application) initImports() {
	var notifiers []notification.Notifier
	if app.config.Email.Enabled {
		email, err := notification.NewEmailNotifier(app.config.Email, app.logger)
		if err != nil {
			app.logger.Fatal().Err(err).Msg("failed to configure email notifier")
		}
		notifiers = append(notifiers, email)
	}
	app.notifications = notification.NewService(repository.NewNotificationRepository(app.db), app.logger, notifiers...)

	stores := entities.Stores{
		Tenants:    repository.NewTenantRepository(app.db),
		Products:   repository.NewProductRepository(app.db),
		Inventory:  repository.NewInventoryRepository(app.db),
		Customers:  repository.NewCustomerRepository(app.db),
		Suppliers:  repository.NewSupplierRepository(app.db),
		Categories: repository.NewCategoryRepository(app.db),
	}
	registry, err := entities.NewRegistry(stores, app.logger)
	if err != nil {
		app.logger.Fatal().Err(err).Msg("failed to register import handlers")
	}

	app.orchestrator = orchestrator.New(
		repository.NewImportJobRepository(app.db),
		registry,
		app.notifierFor(),
		orchestrator.Config{MaxFileSize: app.config.Import.MaxFileSize, SampleRows: app.config.Import.SampleRows},
		app.logger,
	)

	if app.config.Import.TaskRunner == config.RunnerTemporal {
		app.startTemporal()
	}
}

func (app *application) notifierFor() *notification.ImportNotifier {
	return notification.NewImportNotifier(app.publisher, app.notifications, app.logger)
}

func (app *application) startTemporal() {
	temporalClient, err := tc.Dial(tc.Options{
		HostPort:  app.config.Temporal.HostPort,
		Namespace: app.config.Temporal.Namespace,
		Logger:    temporal.NewTemporalAdapter(app.logger),
	})
	if err != nil {
		app.logger.Fatal().Err(err).Msg("Unable to create Temporal client")
	}
	app.temporalClient = temporalClient
	app.orchestrator.SetRunner(temporal.NewRunner(temporalClient, app.logger))

	w := tw.New(temporalClient, temporal.TaskQueueName, tw.Options{})
	w.RegisterWorkflowWithOptions(workflows.ImportExecutionWorkflow, workflow.RegisterOptions{Name: temporal.ExecWorkflowName})
	w.RegisterActivity(&activities.Activities{Executor: app.orchestrator})
	if err := w.Start(); err != nil {
		app.logger.Fatal().Err(err).Msg("Unable to start Temporal worker")
	}
	app.temporalWorker = w
	app.logger.Info().Str("task_queue", temporal.TaskQueueName).Msg("Temporal worker started")
}

func (app *application) initRouter() http.Handler {
	return routes.NewRouter(
		authz.Middleware(app.config.JWTSecret),
		handlers.HealthCheck(app.db),
		handlers.NewImportHandler(app.orchestrator, app.config.Import.MaxFileSize, app.logger),
		handlers.NewNotificationHandler(app.notifications, app.logger),
		handlers.NewWebsocketHandler(app.hub, app.config.CORSOrigins, app.logger),
	)
}

// startServer launches the HTTP server and the background loops, and shuts everything down
// on a signal or a server error.
func (app *application) startServer(handler http.Handler, loops []background) {
	logger := app.logger
	server := &http.Server{
		Addr:              ":" + app.config.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func(l background) {
			defer wg.Done()
			if err := l.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Background loop stopped")
			}
		}(loop)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	cancel()
	wg.Wait()

	if app.temporalWorker != nil {
		logger.Info().Msg("Stopping Temporal worker...")
		app.temporalWorker.Stop()
		logger.Info().Msg("Temporal worker stopped.")
	}
}
