package integrations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/depmap/pkg/cache"
	"github.com/matzehuels/depmap/pkg/observability"
)

const httpTimeout = 10 * time.Second

// maxBody caps a response body; descriptors are a few kilobytes.
const maxBody = 4 << 20

var (
	// ErrNotFound is returned when the remote resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// Client provides shared HTTP functionality for remote source clients.
// It handles caching, retry logic, and common request headers.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	prefix  string
	ttl     time.Duration
	headers map[string]string
}

// NewClient creates a Client caching bodies in backend under prefix for
// ttl. A nil backend disables caching. Headers are applied to all requests.
func NewClient(backend cache.Cache, prefix string, ttl time.Duration, headers map[string]string) *Client {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   backend,
		prefix:  prefix,
		ttl:     ttl,
		headers: headers,
	}
}

// NewHTTPClient creates an HTTP client with the standard request timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) { c.http = hc }

// Cached returns the body stored under key, or runs fetch with retries and
// stores its result. If refresh is true the lookup is skipped.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, fetch func() ([]byte, error)) ([]byte, error) {
	ck := c.prefix + ":" + cache.Hash([]byte(key))
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, ck); ok {
			observability.Cache().OnCacheHit(ctx, c.prefix)
			return data, nil
		}
		observability.Cache().OnCacheMiss(ctx, c.prefix)
	}

	var data []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		data, err = fetch()
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, ck, data, c.ttl); err == nil {
		observability.Cache().OnCacheSet(ctx, c.prefix, len(data))
	}
	return data, nil
}

// Get performs an HTTP GET and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cache.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return cache.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
