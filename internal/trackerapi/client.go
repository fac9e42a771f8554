// Package trackerapi is the HTTP client for the remote tracker API: search
// with scroll pagination, batched task fetch, and changelog fetch. It
// enforces a process-global rate limit and a bounded retry/backoff policy,
// grounded in the teacher's http/client.go request-execution shape and
// http/server.go's golang.org/x/time/rate usage.
package trackerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/evalgo/tracker-sync/internal/applog"
)

// rateLimitDoubleThreshold is how many consecutive 429s trigger doubling
// the request delay for the remainder of the run, per spec.md §7.
const rateLimitDoubleThreshold = 3

// maxRetries caps retry attempts on transient failures, per spec.md §4.1.
const maxRetries = 3

// Client talks to the remote tracker API over JSON/HTTPS with a bearer
// token and organization-id header.
type Client struct {
	baseURL    string
	token      string
	orgID      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *applog.ContextLogger

	delayMu        sync.Mutex
	currentDelay   time.Duration
	consecutive429 int32 // guarded by delayMu, not atomics: threshold-crossing must be check-and-reset under one lock
}

// Config configures a Client.
type Config struct {
	BaseURL      string
	Token        string
	OrgID        string
	RequestDelay time.Duration
	Timeout      time.Duration
}

// New builds a Client with a rate limiter enforcing at least RequestDelay
// between requests, shared across all goroutines using this client — the
// orchestrator's worker pool passes the same *Client to every worker so the
// aggregate outbound rate stays bounded regardless of worker count.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		orgID:   cfg.OrgID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:      rate.NewLimiter(rate.Every(delay), 1),
		log:          applog.With(nil),
		currentDelay: delay,
	}
}

// SetDelay replaces the rate-limit gate's minimum delay between requests.
// The automatic doubling after repeated 429s (spec.md §7) does not go
// through SetDelay; recordRateLimitHit adjusts the limiter itself.
func (c *Client) SetDelay(delay time.Duration) {
	c.delayMu.Lock()
	c.currentDelay = delay
	c.delayMu.Unlock()
	c.limiter.SetLimit(rate.Every(delay))
}

// resetRateLimitStreak clears the consecutive-429 counter after a
// successful request, under the same lock recordRateLimitHit uses.
func (c *Client) resetRateLimitStreak() {
	c.delayMu.Lock()
	c.consecutive429 = 0
	c.delayMu.Unlock()
}

// recordRateLimitHit doubles the request delay once rateLimitDoubleThreshold
// consecutive 429s have been observed, then resets the counter so the
// doubling only compounds on sustained rate limiting rather than every
// single 429. The increment, threshold check, and reset happen under one
// lock so concurrent workers hitting 429s together cross the threshold
// exactly once instead of each independently observing the post-threshold
// count and all doubling.
func (c *Client) recordRateLimitHit() {
	c.delayMu.Lock()
	c.consecutive429++
	if c.consecutive429 < rateLimitDoubleThreshold {
		c.delayMu.Unlock()
		return
	}
	c.consecutive429 = 0
	doubled := c.currentDelay * 2
	c.currentDelay = doubled
	c.delayMu.Unlock()

	c.log.WithField("new_delay", doubled).Warn("trackerapi: doubling request delay after repeated rate limiting")
	c.limiter.SetLimit(rate.Every(doubled))
}

// doJSON executes one request attempt (no retry) and decodes a JSON
// response body into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, query map[string]string, body interface{}, out interface{}) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("trackerapi: rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("trackerapi: marshaling request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("trackerapi: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Org-ID", c.orgID)

	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, fmt.Errorf("trackerapi: reading response body: %w", err)
	}

	if err := classifyStatus(resp.StatusCode, method, path, raw); err != nil {
		return resp, err
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("trackerapi: decoding response from %s: %w", path, err)
		}
	}
	return resp, nil
}

// execWithRetry wraps doJSON with the exponential-backoff retry policy
// grounded in the teacher's calculateBackoff: retryable statuses (429, 5xx)
// and network errors get up to maxRetries retries (maxRetries+1 attempts in
// all); everything else fails fast.
func (c *Client) execWithRetry(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		_, err := c.doJSON(ctx, method, path, query, body, out)
		if err == nil {
			c.resetRateLimitStreak()
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if isRateLimited(err) {
			c.recordRateLimitHit()
		}
		if attempt < maxRetries {
			backoff := calculateBackoff(attempt, 200*time.Millisecond)
			c.log.WithField("path", path).WithField("attempt", attempt).Warn("trackerapi: retrying after transient error")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &ExhaustedError{Cause: lastErr, Attempts: maxRetries + 1}
}

// calculateBackoff is exponential (initial * 2^attempt) with no cap of its
// own, mirroring the teacher's http/client.go calculateBackoff in
// exponential mode; maxRetries bounds how many times it is applied.
func calculateBackoff(attempt int, initial time.Duration) time.Duration {
	multiplier := 1 << uint(attempt)
	return initial * time.Duration(multiplier)
}
