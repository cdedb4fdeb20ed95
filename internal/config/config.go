package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	IdempotencyTTL     time.Duration
	BodyLimitBytes     int64

	QuoteAPI QuoteAPI
	Draft    Draft
	Queue    Queue
	Limits   Limits
	Obs      Obs
}

// QuoteAPI configures the client of the quote REST backend.
type QuoteAPI struct {
	BaseURL          string
	Timeout          time.Duration
	RetryMaxAttempts int
	RetryBaseBackoff time.Duration
	RetryJitter      float64
	CircuitMinReq    int
	CircuitRatio     float64
	CircuitOpenFor   time.Duration
}

// Draft configures editing sessions.
type Draft struct {
	TTL         time.Duration
	LockTTL     time.Duration
	RedisPrefix string
	RecentTTL   time.Duration
}

// Queue configures the reprice queue and its worker.
type Queue struct {
	Prefix      string
	MaxAttempts int
	DedupTTL    time.Duration
	Visibility  time.Duration
	Concurrency int
	BaseBackoff time.Duration
}

// Limits configures request rate limiting.
type Limits struct {
	// API is a ulule limiter rate such as "300-M" applied per client IP.
	API        string
	SaveLimit  int
	SaveWindow time.Duration
}

// Obs configures logging, metrics and tracing.
type Obs struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsEnabled   bool
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		QuoteAPI: QuoteAPI{
			BaseURL:          strings.TrimRight(strings.TrimSpace(k.String("QUOTE_API_BASE_URL")), "/"),
			Timeout:          parseDuration(k.String("QUOTE_API_TIMEOUT"), "10s"),
			RetryMaxAttempts: parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
			RetryBaseBackoff: parseDuration(k.String("RETRY_BASE_BACKOFF"), "100ms"),
			RetryJitter:      parseFloat(k.String("RETRY_JITTER"), 0.2),
			CircuitMinReq:    parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 5),
			CircuitRatio:     parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
			CircuitOpenFor:   parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
		},
		Draft: Draft{
			TTL:         parseDuration(k.String("DRAFT_TTL"), "24h"),
			LockTTL:     parseDuration(k.String("DRAFT_LOCK_TTL"), "5s"),
			RedisPrefix: valueOrDefault(k.String("DRAFT_REDIS_PREFIX"), "editor"),
			RecentTTL:   parseDuration(k.String("DRAFT_RECENT_TTL"), "15s"),
		},
		Queue: Queue{
			Prefix:      valueOrDefault(k.String("QUEUE_PREFIX"), "quote"),
			MaxAttempts: parseInt(k.String("QUEUE_MAX_ATTEMPTS"), 5),
			DedupTTL:    parseDuration(k.String("QUEUE_DEDUP_TTL"), "10m"),
			Visibility:  parseDuration(k.String("QUEUE_VISIBILITY_TIMEOUT"), "30s"),
			Concurrency: parseInt(k.String("QUEUE_CONCURRENCY"), 2),
			BaseBackoff: parseDuration(k.String("QUEUE_BASE_BACKOFF"), "2s"),
		},
		Limits: Limits{
			API:        valueOrDefault(k.String("RATE_LIMIT_API"), "600-M"),
			SaveLimit:  parseInt(k.String("RATE_LIMIT_SAVE_LIMIT"), 30),
			SaveWindow: parseDuration(k.String("RATE_LIMIT_SAVE_WINDOW"), "1m"),
		},
		Obs: Obs{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "quote_editor"),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.QuoteAPI.BaseURL == "" {
		return nil, errors.New("QUOTE_API_BASE_URL is required")
	}
	if cfg.Limits.SaveLimit <= 0 {
		return nil, errors.New("RATE_LIMIT_SAVE_LIMIT must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
