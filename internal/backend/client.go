// Package backend is the client of the quote REST backend that owns
// persistence of quotes.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/quote-editor/internal/quote"
	"github.com/noah-isme/quote-editor/internal/resilience"
)

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = errors.New("backend: quote not found")

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: HTTP %d: %s", e.Status, e.Detail)
}

// RepriceResult is the totals snapshot computed by the backend reprice call.
type RepriceResult struct {
	QuoteID         int64   `json:"quote_id"`
	Pax             int     `json:"pax"`
	Days            int     `json:"days"`
	OnspotCards     int     `json:"onspot_cards"`
	Margin          float64 `json:"margin_pct"`
	OnspotTotal     float64 `json:"onspot_total"`
	HassleTotal     float64 `json:"hassle_total"`
	PurchaseTotal   float64 `json:"achats_total"`
	CommissionTotal float64 `json:"commission_total"`
	SaleTotal       float64 `json:"ventes_total"`
	GrandTotal      float64 `json:"grand_total"`
}

// Config configures the client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	BaseBackoff    time.Duration
	Jitter         float64
	BreakerMinReq  int
	BreakerRatio   float64
	BreakerOpenFor time.Duration
}

// Client talks to the quote backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

// New builds a client with retries, a circuit breaker and tracing.
func New(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cfg.BreakerMinReq <= 0 {
		cfg.BreakerMinReq = 5
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		MinRequests:  cfg.BreakerMinReq,
		FailureRatio: cfg.BreakerRatio,
		OpenFor:      cfg.BreakerOpenFor,
	}).WithTarget("quote_backend").WithLogger(logger)

	transport := &resilience.Transport{
		Breaker:     breaker,
		Target:      "quote_backend",
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: cfg.BaseBackoff,
		Jitter:      cfg.Jitter,
	}
	return NewWithHTTPClient(cfg.BaseURL, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}, logger)
}

// NewWithHTTPClient builds a client over an existing http.Client.
func NewWithHTTPClient(baseURL string, hc *http.Client, logger zerolog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  logger.With().Str("component", "backend").Logger(),
	}
}

// GetQuote loads a quote.
func (c *Client) GetQuote(ctx context.Context, id int64) (quote.Record, error) {
	var rec quote.Record
	err := c.call(ctx, http.MethodGet, "/quotes/"+strconv.FormatInt(id, 10), nil, &rec)
	return rec, err
}

// SaveQuote replaces an existing quote.
func (c *Client) SaveQuote(ctx context.Context, id int64, p quote.Payload) (quote.Record, error) {
	var rec quote.Record
	err := c.call(ctx, http.MethodPut, "/quotes/"+strconv.FormatInt(id, 10), p, &rec)
	return rec, err
}

// CreateOrSaveQuote creates a quote and returns it with its assigned id.
func (c *Client) CreateOrSaveQuote(ctx context.Context, p quote.Payload) (quote.Record, error) {
	var rec quote.Record
	err := c.call(ctx, http.MethodPost, "/quotes", p, &rec)
	return rec, err
}

// RepriceQuote asks the backend to recompute and store its totals.
func (c *Client) RepriceQuote(ctx context.Context, id int64) (RepriceResult, error) {
	var res RepriceResult
	err := c.call(ctx, http.MethodPost, "/quotes/"+strconv.FormatInt(id, 10)+"/reprice", nil, &res)
	return res, err
}

// RecentQuotes lists the most recently updated quotes. The limit is clamped
// to 1..50.
func (c *Client) RecentQuotes(ctx context.Context, limit int) ([]quote.Summary, error) {
	limit = min(max(limit, 1), 50)
	var out struct {
		Items []quote.Summary `json:"items"`
	}
	err := c.call(ctx, http.MethodGet, "/quotes/recent?limit="+strconv.Itoa(limit), nil, &out)
	return out.Items, err
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quotes/recent?limit=1", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return &StatusError{Status: resp.StatusCode, Detail: resp.Status}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("backend call failed")
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Detail: errorDetail(resp)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorDetail extracts "detail" from a JSON error body. Non-string details
// are returned as their JSON text; otherwise the status line is used.
func errorDetail(resp *http.Response) string {
	fallback := "HTTP " + strconv.Itoa(resp.StatusCode)
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fallback
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 || string(body.Detail) == "null" {
		return fallback
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	return string(body.Detail)
}
