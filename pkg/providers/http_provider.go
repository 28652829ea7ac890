package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
)

// HTTPClient is the shared HTTP layer for review providers. It provides
// connection pooling, retry with backoff and a consecutive-failure health
// signal.
type HTTPClient struct {
	config ClientConfig
	client *http.Client
	logger *slog.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu                  sync.RWMutex
	consecutiveFailures int
	lastError           error
	totalRequests       int64
	failedRequests      int64
}

// NewHTTPClient creates a client with connection pooling.
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.MinBackoff == 0 {
		config.MinBackoff = DefaultMinBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 16
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		logger: slog.Default().With("component", "providers.http", "provider", config.Name),
		sleep:  sleepContext,
	}
}

// Name returns the provider name.
func (c *HTTPClient) Name() string {
	return c.config.Name
}

// Backoff returns the wait before the given retry (1-based), doubling from
// MinBackoff and capped at MaxBackoff.
func (c *HTTPClient) Backoff(retry int) time.Duration {
	d := time.Duration(math.Pow(2, float64(retry-1))) * c.config.MinBackoff
	if d < c.config.MinBackoff {
		d = c.config.MinBackoff
	}
	if d > c.config.MaxBackoff {
		d = c.config.MaxBackoff
	}
	return d
}

// DoRequest performs an HTTP request, retrying connection failures and 5xx
// responses. The returned response has a 2xx status and must be closed by
// the caller.
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.Backoff(attempt - 1)
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"max_attempts", c.config.MaxAttempts,
				"backoff", backoff,
			)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		if req.Header.Get("Content-Type") == "" && body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			c.recordFailure(err)
			if ctx.Err() != nil {
				return nil, &TimeoutError{Provider: c.config.Name, Timeout: c.config.Timeout}
			}
			lastErr = &ProviderError{Provider: c.config.Name, Message: "request failed", Cause: err}
			c.logger.Warn("request failed", "attempt", attempt, "error", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.recordSuccess()
			return resp, nil
		}

		lastErr = c.statusError(resp)
		c.recordFailure(lastErr)
		if !IsTransient(lastErr) {
			return nil, lastErr
		}
		c.logger.Warn("request returned error status", "status", resp.StatusCode, "attempt", attempt)
	}

	return nil, lastErr
}

// statusError drains resp and maps its status to a typed error.
func (c *HTTPClient) statusError(resp *http.Response) error {
	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Provider: c.config.Name, Message: string(errorBody)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:   c.config.Name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(errorBody),
		}
	default:
		return &ProviderError{Provider: c.config.Name, StatusCode: resp.StatusCode, Message: string(errorBody)}
	}
}

// Healthy reports false after three consecutive failed requests.
func (c *HTTPClient) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.consecutiveFailures < 3
}

// Stats returns request totals and the last error seen.
func (c *HTTPClient) Stats() (total, failed int64, lastErr error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalRequests, c.failedRequests, c.lastError
}

func (c *HTTPClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.consecutiveFailures = 0
	c.lastError = nil
}

func (c *HTTPClient) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.failedRequests++
	c.consecutiveFailures++
	c.lastError = err
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
