package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"namegnome/internal/providers/cache"
)

const (
	maxAttempts    = 3
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second
	defaultTimeout = 15 * time.Second
	responseLimit  = 4 << 20
	defaultPerMin  = 30
	requestWindow  = time.Minute
)

// core holds the HTTP plumbing shared by every provider client.
type core struct {
	provider   string
	httpClient *http.Client
	limiter    *rateLimiter
	store      *cache.Store
	sleep      func(context.Context, time.Duration) error
}

func newCore(provider string) core {
	return core{
		provider:   provider,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    newRateLimiter(defaultPerMin, requestWindow),
		sleep:      sleepContext,
	}
}

// fetch issues a GET with rate limiting and retry. Retries cover 429,
// 5xx, and transport timeouts; a Retry-After header overrides the
// backoff. 404 surfaces as errNotFound so callers can return an empty
// result.
func (c *core) fetch(ctx context.Context, endpoint string, header http.Header) ([]byte, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryAfter, err := c.doOnce(ctx, endpoint, header)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, errNotFound) || ctx.Err() != nil {
			return nil, err
		}
		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		delay := backoff
		if retryAfter > 0 {
			delay = retryAfter
		}
		if delay > maxBackoff {
			delay = maxBackoff
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, &UnavailableError{Provider: c.provider, Reason: lastErr.Error()}
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *core) doOnce(ctx context.Context, endpoint string, header http.Header) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, 0, &retryableError{err: fmt.Errorf("request timed out: %w", err)}
		}
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, errNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &retryableError{
			err: fmt.Errorf("%s returned 429", c.provider),
		}
	case resp.StatusCode >= 500:
		return nil, 0, &retryableError{err: fmt.Errorf("%s returned %d", c.provider, resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, 0, fmt.Errorf("%s returned %d", c.provider, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, 0, nil
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

// getJSON fetches endpoint and decodes the response into out, consulting
// the response cache when one is configured. 404 yields notFound=true
// with out untouched.
func (c *core) getJSON(ctx context.Context, entity cache.Entity, endpoint string, header http.Header, out any) (notFound bool, err error) {
	var key string
	if c.store != nil {
		key = cache.Key(c.provider, string(entity), endpoint)
		if payload, ok, cacheErr := c.store.Get(ctx, key); cacheErr == nil && ok {
			if err := json.Unmarshal(payload, out); err == nil {
				return false, nil
			}
			// Corrupt entry: fall through and refetch.
		}
	}

	body, err := c.fetch(ctx, endpoint, header)
	if errors.Is(err, errNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode %s response: %w", c.provider, err)
	}
	if c.store != nil {
		// Cache write failures never fail the lookup.
		_ = c.store.Put(ctx, key, c.provider, entity, body)
	}
	return false, nil
}
