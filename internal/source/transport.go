package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/portfolio-tracker/internal/circuitbreaker"
	"github.com/portfolio-tracker/internal/config"
	apperrors "github.com/portfolio-tracker/internal/errors"
	"github.com/portfolio-tracker/internal/retry"
)

// transport is the shared outbound HTTP plumbing for source adapters:
// a client-side token bucket, a bounded per-attempt timeout, a single
// retry on failure and a per-venue circuit breaker.
type transport struct {
	client  *http.Client
	limiter *rate.Limiter
	retry   *retry.Config
	breaker *circuitbreaker.Breaker
	cfg     config.HTTPConfig
}

func newTransport(sourceName string, cfg config.HTTPConfig) *transport {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	rc := retry.DefaultConfig()
	rc.MaxAttempts = attempts

	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 3
	}

	return &transport{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retry:   rc,
		breaker: circuitbreaker.New(sourceName, nil),
		cfg:     cfg,
	}
}

// requestBuilder constructs a fresh request for each attempt. Signed private
// calls need a new nonce per attempt, so requests are never reused.
type requestBuilder func(ctx context.Context) (*http.Request, error)

// doJSON executes the request with throttling, timeout and retry, and
// decodes the 2xx response body into out. A non-2xx status from sourceName
// is surfaced as an upstream error carrying the response body.
func (t *transport) doJSON(ctx context.Context, sourceName string, build requestBuilder, out interface{}) error {
	if err := t.breaker.Allow(); err != nil {
		return apperrors.NewUpstreamError(sourceName, err)
	}

	err := retry.WithTimeout(ctx, t.cfg.Timeout, t.retry, func(ctx context.Context) error {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := build(ctx)
		if err != nil {
			return err
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return apperrors.NewUpstreamError(sourceName, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return apperrors.NewUpstreamError(sourceName, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return apperrors.NewUpstreamError(sourceName,
				fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(body)))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return apperrors.NewUpstreamError(sourceName, fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
	t.breaker.Record(err)
	return err
}

// getJSON is doJSON for plain unauthenticated GETs.
func (t *transport) getJSON(ctx context.Context, sourceName, url string, out interface{}) error {
	return t.doJSON(ctx, sourceName, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}, out)
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
