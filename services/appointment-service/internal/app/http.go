package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// NewMetrics registers the service metrics on a private registry and returns the
// /metrics handler serving it.
func NewMetrics() (*metrics.Metrics, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg), promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// RateLimit is the configured limiter middleware. Close releases the Redis client, if any.
type RateLimit struct {
	Middleware httpx.Middleware
	Ready      []runtime.ReadyCheck
	Close      func() error
}

func NewRateLimit(cfg Config, logger *slog.Logger) RateLimit {
	if cfg.RateLimitStore == RateLimitRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.Service)
		return RateLimit{
			Middleware: rl.Middleware(logger, true),
			Ready: []runtime.ReadyCheck{{Name: "ratelimit-redis", Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}}},
			Close: rdb.Close,
		}
	}
	return RateLimit{
		Middleware: httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware(),
		Close:      func() error { return nil },
	}
}

// Serve runs srv until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}
