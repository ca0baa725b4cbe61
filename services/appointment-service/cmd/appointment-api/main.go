package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/auth"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/app"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/handlers"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/jobs"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/queue"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/scheduling"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := app.Load("appointment-api", "3333")
	if err == nil {
		err = cfg.ValidateAPI()
	}
	if err != nil {
		runtime.NewLogger("appointment-api", "info").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("appointment-api stopped", "err", err)
		os.Exit(1)
	}
}

// run owns every deferred cleanup so that main only exits after they ran.
func run(cfg app.Config, logger *slog.Logger) error {
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

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connection: %w", err)
	}
	defer pool.Close()

	notices, err := app.NewNoticeStore(ctx, cfg, pool)
	if err != nil {
		return fmt.Errorf("notification store init: %w", err)
	}
	defer func() { _ = notices.Close(context.Background()) }()

	m, metricsHandler := app.NewMetrics()

	backend, queueChecks := app.NewQueueBackend(cfg, logger)
	manager := queue.NewManager(backend, logger, m, jobs.Kinds()...)
	defer func() { _ = manager.Close() }()

	if cfg.QueueBackend == app.QueueMemory {
		// Single-process mode: nothing else drains the in-memory queue.
		sender, err := app.NewMailSender(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("mail sender init: %w", err)
		}
		if err := jobs.Register(manager, sender, cfg.Locale, logger); err != nil {
			return fmt.Errorf("job handler registration: %w", err)
		}
		go func() {
			if err := manager.Process(ctx); err != nil {
				logger.Error("in-process worker stopped", "err", err)
			}
		}()
	}

	appointments := storage.NewAppointmentRepository(pool)
	users := storage.NewUserRepository(pool)
	engine := scheduling.NewEngine(appointments, users, notices.Store, manager,
		scheduling.WithLogger(logger),
		scheduling.WithMetrics(m),
		scheduling.WithLocale(cfg.Locale),
	)

	router := handlers.NewRouter(handlers.Deps{
		Logger:       logger,
		Engine:       engine,
		Users:        users,
		Appointments: appointments,
		Notices:      notices.Store,
		Tokens:       auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		AppURL:       cfg.AppURL,
		WorkingDay:   cfg.WorkingDay,
	})

	limiter := app.NewRateLimit(cfg, logger)
	defer func() { _ = limiter.Close() }()

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	checks = append(checks, queueChecks...)
	checks = append(checks, notices.Ready...)
	checks = append(checks, limiter.Ready...)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", metricsHandler)
	mux.Handle("/", httpx.Chain(router,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         10 * time.Minute,
		}),
		limiter.Middleware,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(cfg.RequestTimeout),
	))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(httpHandler, cfg.Service),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := app.Serve(ctx, srv, logger); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
