package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/quote-editor/internal/app"
	"github.com/noah-isme/quote-editor/internal/backend"
	"github.com/noah-isme/quote-editor/internal/common"
	"github.com/noah-isme/quote-editor/internal/config"
	"github.com/noah-isme/quote-editor/internal/editor"
	"github.com/noah-isme/quote-editor/internal/health"
	"github.com/noah-isme/quote-editor/internal/obs"
	"github.com/noah-isme/quote-editor/internal/queue"
	"github.com/noah-isme/quote-editor/internal/ratelimit"
	"github.com/noah-isme/quote-editor/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := cfg.Obs.MetricsEnabled

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "quote-editor-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
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

	deps, err := app.New(ctx, cfg, logger, app.Options{Metrics: metricsEnabled})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, deps.MetricsRegistry)

	repriceQueue := queue.Enqueuer{
		R:           deps.Redis,
		Prefix:      cfg.Queue.Prefix,
		DedupTTL:    cfg.Queue.DedupTTL,
		MaxAttempts: cfg.Queue.MaxAttempts,
	}
	drafts := editor.NewService(editor.Options{
		Redis:          deps.Redis,
		Backend:        deps.Backend,
		Queue:          repriceQueue,
		Logger:         logger,
		Prefix:         cfg.Draft.RedisPrefix,
		DraftTTL:       cfg.Draft.TTL,
		LockTTL:        cfg.Draft.LockTTL,
		RecentTTL:      cfg.Draft.RecentTTL,
		BackendTimeout: cfg.QuoteAPI.Timeout,
	})
	queueAdmin := &queue.AdminHandler{
		Store:             queue.NewRedisDLQ(deps.Redis, cfg.Queue.Prefix),
		Queue:             repriceQueue,
		Logger:            logger,
		VisibilityTimeout: cfg.Queue.Visibility,
	}

	apiLimit, err := app.RateLimit(deps.LimiterStore, cfg.Limits.API, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure api rate limit")
	}
	saveLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: cfg.Draft.RedisPrefix + ":ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.DraftSaveKey,
			Window: cfg.Limits.SaveWindow,
			Max:    cfg.Limits.SaveLimit,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("save rate limiter unavailable") },
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	draftHandler := &editor.Handler{Svc: drafts, SaveLimit: saveLimit.Middleware}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), deps.MetricsRegistry)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-Match", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production", NoStore: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug", protectPprof(middleware.Profiler(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{
		Checker:        readinessChecker{redis: deps.Redis, backend: deps.Backend},
		RedisTimeout:   300 * time.Millisecond,
		BackendTimeout: time.Second,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(apiLimit)
		v.Get("/quotes/recent", draftHandler.Recent)

		v.Route("/drafts", func(d chi.Router) {
			d.Use(idem.Middleware)
			draftHandler.Routes(d)
		})

		v.Route("/admin/queues", func(a chi.Router) {
			a.Get("/dlq", queueAdmin.ListDLQ)
			a.Post("/dlq/replay", queueAdmin.ReplayDLQ)
			a.Get("/stats", queueAdmin.Stats)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("backend", cfg.QuoteAPI.BaseURL).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis   *redis.Client
	backend *backend.Client
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) PingBackend(ctx context.Context, timeout time.Duration) error {
	if c.backend == nil {
		return errors.New("quote backend not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.backend.Ping(ctx)
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
