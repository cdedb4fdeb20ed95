package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/noah-isme/quote-editor/internal/app"
	"github.com/noah-isme/quote-editor/internal/backend"
	"github.com/noah-isme/quote-editor/internal/config"
	"github.com/noah-isme/quote-editor/internal/obs"
	"github.com/noah-isme/quote-editor/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	if cfg.Obs.TracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "quote-editor-worker",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := app.NewRedis(ctx, cfg.RedisURL, false, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	quotes := app.NewBackend(cfg.QuoteAPI, logger)

	repriceWorker := queue.Worker{
		R:                 redisClient,
		Prefix:            cfg.Queue.Prefix,
		Kind:              queue.KindReprice,
		Concurrency:       cfg.Queue.Concurrency,
		VisibilityTimeout: cfg.Queue.Visibility,
		RetryBase:         cfg.Queue.BaseBackoff,
		RetryJitter:       cfg.QuoteAPI.RetryJitter,
		Store:             queue.NewRedisDLQ(redisClient, cfg.Queue.Prefix),
		Logger:            &logger,
		Handler:           queue.RepriceHandler(reprice(quotes, logger)),
	}

	logger.Info().Str("kind", queue.KindReprice).Int("concurrency", cfg.Queue.Concurrency).Msg("worker starting")
	if err := repriceWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}

func reprice(quotes *backend.Client, logger zerolog.Logger) func(context.Context, int64) error {
	return func(ctx context.Context, quoteID int64) error {
		res, err := quotes.RepriceQuote(ctx, quoteID)
		if err != nil {
			obs.CountReprice("failed")
			return err
		}
		obs.CountReprice("ok")
		logger.Info().
			Int64("quote_id", quoteID).
			Int("pax", res.Pax).
			Int("days", res.Days).
			Float64("grand_total", res.GrandTotal).
			Msg("quote repriced")
		return nil
	}
}
