package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Transport is an http.RoundTripper that retries transient failures with
// exponential backoff and guards the dependency with a circuit breaker.
//
// Only idempotent requests are retried: GET, HEAD, PUT, DELETE, OPTIONS and
// any request carrying an Idempotency-Key header. Client errors (4xx other
// than 429) are returned as-is and count as successes for the breaker.
type Transport struct {
	Base           http.RoundTripper
	Breaker        *Breaker
	Target         string
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	Jitter         float64
	AttemptTimeout time.Duration
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.MaxAttempts
	if attempts <= 0 || !replayable(req) {
		attempts = 1
	}
	maxBackoff := t.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if t.Breaker != nil && !t.Breaker.Allow(ctx) {
			ShortCircuited.WithLabelValues(t.targetLabel()).Inc()
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrOpenCircuit, lastErr)
			}
			return nil, ErrOpenCircuit
		}

		resp, err := t.once(req, body, base)
		retry := transient(resp, err)
		if t.Breaker != nil {
			t.Breaker.Report(ctx, !retry)
		}
		if !retry {
			return resp, err
		}
		if attempt == attempts {
			return resp, err
		}

		wait := Backoff(t.BaseBackoff, attempt, t.Jitter)
		cause := "network"
		if resp != nil {
			cause = strconv.Itoa(resp.StatusCode)
			if ra := RetryAfter(resp.Header, time.Now()); ra > 0 {
				wait = ra
			}
			drain(resp)
			lastErr = errors.New(resp.Status)
		} else {
			lastErr = err
		}
		RetryAttempts.WithLabelValues(t.targetLabel(), cause).Inc()

		timer := time.NewTimer(min(wait, maxBackoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (t *Transport) once(req *http.Request, body []byte, base http.RoundTripper) (*http.Response, error) {
	ctx, cancel := req.Context(), context.CancelFunc(func() {})
	if t.AttemptTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.AttemptTimeout)
	}
	attemptReq := req.Clone(ctx)
	if body != nil {
		attemptReq.Body = io.NopCloser(bytes.NewReader(body))
		attemptReq.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	resp, err := base.RoundTrip(attemptReq)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (t *Transport) targetLabel() string {
	if t.Target != "" {
		return t.Target
	}
	if t.Breaker != nil {
		return t.Breaker.targetLabel()
	}
	return "default"
}

func transient(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return resp.StatusCode >= 500
}

func replayable(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return req.Header.Get("Idempotency-Key") != ""
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
