package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// RetryPolicy configures the retry wrapper. A zero policy means single-shot.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// BackoffBase is multiplied by the attempt number for linear backoff
	// (base*1 before the first retry, base*2 before the second, ...).
	BackoffBase time.Duration
}

// Client performs timed JSON GET requests against upstream providers.
// A single Client is shared by all adapters; the underlying transport pools
// connections per host.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Client with a pooled transport.
// Per-call timeouts are applied through the request context, not the
// http.Client, so one Client can serve providers with different deadlines.
func NewClient() *Client {
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		http:   &http.Client{Transport: transport},
		logger: slog.Default().With("component", "fetch"),
	}
}

// GetJSON performs a single GET with the given timeout and decodes the body
// into out. Error mapping:
//
//   - deadline elapsed      → *TimeoutError
//   - non-2xx status        → *TransportError (including 404)
//   - body decode failure   → *ParseError
//
// Callers that treat 404 as a normalized "not found" must check the
// TransportError status themselves; GetJSON does not special-case it.
func (c *Client) GetJSON(ctx context.Context, provider, rawURL string, timeout time.Duration, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &TransportError{Provider: provider, Message: "invalid request URL"}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Provider: provider, Timeout: timeout}
		}
		return &TransportError{Provider: provider, Message: "request failed: " + sanitizeNetErr(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &TransportError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ParseError{Provider: provider, Cause: err}
	}
	return nil
}

// GetJSONRetry performs GetJSON with up to policy.MaxRetries+1 attempts.
// Only timeouts and 5xx responses are retried; 4xx responses and parse
// failures return immediately. Backoff waits respect context cancellation.
func (c *Client) GetJSONRetry(ctx context.Context, provider, rawURL string, timeout time.Duration, policy RetryPolicy, out any) error {
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := policy.BackoffBase * time.Duration(attempt)
			c.logger.Debug("retrying request",
				"provider", provider,
				"attempt", attempt,
				"max_retries", policy.MaxRetries,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = c.GetJSON(ctx, provider, rawURL, timeout, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// retryable reports whether an error is worth another attempt.
func retryable(err error) bool {
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return transport.StatusCode >= 500 || transport.StatusCode == 0
	}
	return false
}

// sanitizeNetErr strips the URL (and with it any credential-bearing query
// parameters) from a transport error string.
func sanitizeNetErr(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Err != nil {
			return urlErr.Err.Error()
		}
		return urlErr.Op
	}
	return "network error"
}
