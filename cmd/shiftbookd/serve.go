package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"shift-booking-backend/config"
	"shift-booking-backend/internal/api"
	"shift-booking-backend/internal/booking"
	"shift-booking-backend/internal/db"
	"shift-booking-backend/internal/dispatch"
	"shift-booking-backend/internal/jobs"
	"shift-booking-backend/internal/logging"
	"shift-booking-backend/internal/notification"
	"shift-booking-backend/internal/store"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background booking workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file (empty for defaults and environment only)")
	return cmd
}

// app is the fully wired service.
type app struct {
	router    *gin.Engine
	queue     *dispatch.Queue
	scheduler *dispatch.Scheduler
	pool      *notification.WorkerPool
}

// newApp wires every component on top of an open store.
func newApp(cfg *config.Config, st store.Store, logger *logging.Logger) (*app, error) {
	var pool *notification.WorkerPool
	var notifier dispatch.Notifier
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, st, webpushOptions, logger.With("component", "notification"))
		notifier = pool
	} else {
		logger.Warn("VAPID keys are not configured; completion notifications are disabled")
	}

	client := booking.NewClient(&cfg.Booking, logger)
	checker := booking.NewChecker(client, cfg.DuplicateCheck.FailClosed, logger.With("component", "duplicate_check"))
	retrier := booking.NewRetrier(client, cfg.Booking.MaxRetries, cfg.Booking.RetryDelay, nil, logger.With("component", "booking"))

	dispatcher := dispatch.NewDispatcher(st, checker, retrier, cfg.Dispatcher.Concurrency, notifier, logger.With("component", "dispatcher"))
	queue := dispatch.NewQueue(cfg.Dispatcher.QueueSize)
	scheduler := dispatch.NewScheduler(queue, dispatcher, st, cfg.Dispatcher.Workers, cfg.Dispatcher.RecoverInterval, logger.With("component", "scheduler"))

	intake, err := jobs.NewService(st, queue, cfg.Dispatcher.MinBatchSize, logger.With("component", "intake"))
	if err != nil {
		return nil, err
	}
	reporter := jobs.NewReporter(st, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second, logger)

	handler := api.NewHandler(intake, reporter, st, webpushOptions, logger.With("component", "api"))

	return &app{
		router:    api.NewRouter(handler, cfg.Server),
		queue:     queue,
		scheduler: scheduler,
		pool:      pool,
	}, nil
}

// start launches the background workers. They stop when ctx is cancelled;
// the returned channel is closed once the scheduler has drained its workers.
func (a *app) start(ctx context.Context) <-chan struct{} {
	if a.pool != nil {
		a.pool.Start(ctx)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.scheduler.Run(ctx)
	}()
	return done
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()
	logger.Info("configuration loaded", "path", configPath)

	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)
	defer appStore.Close()

	a, err := newApp(cfg, appStore, logger)
	if err != nil {
		return err
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	workersDone := a.start(workerCtx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: a.router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping services")
	case err := <-serveErr:
		cancelWorkers()
		<-workersDone
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	// In-flight items stay pending and are resumed by the next start.
	cancelWorkers()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		logger.Warn("workers did not stop before the shutdown deadline")
	}

	logger.Info("server gracefully stopped")
	return nil
}
