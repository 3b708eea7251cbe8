package adapters

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	xhttp "SignalFuse/pkg/http"
)

// HTTPServiceBase centralizes client construction, throttling and JSON requests
// for remote signature producers.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
	limiter *rate.Limiter
	backoff time.Duration
}

type BaseOption func(*HTTPServiceBase)

// WithRateLimit throttles outbound requests. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) BaseOption {
	return func(b *HTTPServiceBase) {
		if rps <= 0 {
			b.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) BaseOption {
	return func(b *HTTPServiceBase) {
		if d > 0 {
			b.backoff = d
		}
	}
}

// WithClient replaces the underlying HTTP client.
func WithClient(c *xhttp.Client) BaseOption {
	return func(b *HTTPServiceBase) {
		if c != nil {
			b.client = c
		}
	}
}

func NewHTTPServiceBase(baseURL string, timeout time.Duration, opts ...BaseOption) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	b := &HTTPServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		backoff: 50 * time.Millisecond,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *HTTPServiceBase) wait(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// Do sends one request under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) Do(ctx context.Context, method, path string, payload, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("remote adapter http client not initialized")
	}
	if err := b.wait(ctx); err != nil {
		return err
	}
	opts := &xhttp.RequestOptions{
		Method: method,
		URL:    b.baseURL + path,
	}
	if payload != nil {
		opts.Headers = map[string]string{"Content-Type": "application/json"}
		opts.Body = payload
	}
	if err := b.client.SendAndParse(ctx, opts, dest); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// PostJSON posts the given payload to path under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload, dest interface{}) error {
	return b.Do(ctx, xhttp.MethodPost, path, payload, dest)
}

// PostJSONWithRetry posts JSON with up to attempts tries. Only transient errors are retried.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || !xhttp.IsRetryable(err) || i == attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(1<<(i-1)) * b.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
