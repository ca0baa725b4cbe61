package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/app"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/jobs"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/queue"
)

func main() {
	cfg, err := app.Load("mail-worker", "3334")
	if err != nil {
		runtime.NewLogger("mail-worker", "info").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("mail-worker stopped", "err", err)
		os.Exit(1)
	}
}

// run owns every deferred cleanup so that main only exits after they ran.
func run(cfg app.Config, logger *slog.Logger) error {
	if cfg.QueueBackend == app.QueueMemory {
		return errors.New("the memory queue only works inside the API process; use asynq or kafka")
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	sender, err := app.NewMailSender(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("mail sender init: %w", err)
	}

	m, metricsHandler := app.NewMetrics()
	backend, checks := app.NewQueueBackend(cfg, logger)
	manager := queue.NewManager(backend, logger, m, jobs.Kinds()...)
	defer func() { _ = manager.Close() }()
	if err := jobs.Register(manager, sender, cfg.Locale, logger); err != nil {
		return fmt.Errorf("job handler registration: %w", err)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", metricsHandler)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.Chain(mux, httpx.WithRequestID),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := app.Serve(ctx, srv, logger); err != nil {
			logger.Error("ops server error", "err", err)
		}
	}()

	// The worker runs on its own context, detached from any request.
	if err := manager.Process(ctx); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}
