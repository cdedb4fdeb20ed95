package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/quote-editor/internal/backend"
	"github.com/noah-isme/quote-editor/internal/common"
	"github.com/noah-isme/quote-editor/internal/config"
)

// Dependencies enumerates the shared clients built once per process.
type Dependencies struct {
	Redis           *redis.Client
	Backend         *backend.Client
	LimiterStore    limiter.Store
	MetricsRegistry prometheus.Registerer
}

// Options tunes how dependencies are instrumented.
type Options struct {
	Metrics bool
}

// New connects Redis, builds the quote backend client and the limiter store.
// The caller owns the returned Redis client and must close it.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	rdb, err := NewRedis(ctx, cfg.RedisURL, opts.Metrics, logger)
	if err != nil {
		return nil, err
	}
	store, err := NewLimiterStore(rdb)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	return &Dependencies{
		Redis:           rdb,
		Backend:         NewBackend(cfg.QuoteAPI, logger),
		LimiterStore:    store,
		MetricsRegistry: prometheus.DefaultRegisterer,
	}, nil
}

// NewRedis parses url, instruments the client and checks it answers.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// NewBackend builds the resilient quote backend client from configuration.
func NewBackend(cfg config.QuoteAPI, logger zerolog.Logger) *backend.Client {
	return backend.New(backend.Config{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		MaxAttempts:    cfg.RetryMaxAttempts,
		BaseBackoff:    cfg.RetryBaseBackoff,
		Jitter:         cfg.RetryJitter,
		BreakerMinReq:  cfg.CircuitMinReq,
		BreakerRatio:   cfg.CircuitRatio,
		BreakerOpenFor: cfg.CircuitOpenFor,
	}, logger)
}

// NewLimiterStore wires a rate limiter store backed by Redis.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "limiter:api"})
}

// RateLimit returns a per client IP limiter middleware. rate uses the
// limiter format, e.g. "600-M".
func RateLimit(store limiter.Store, rate string, logger zerolog.Logger) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	mw := stdlib.NewMiddleware(
		limiter.New(store, parsed),
		stdlib.WithKeyGetter(common.ClientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			logger.Error().Err(err).Msg("rate limiter store failed")
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "rate limiter unavailable", nil)
		}),
	)
	return mw.Handler, nil
}
