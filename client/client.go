// Package client provides the HTTP client used to talk to package feeds.
//
// Requests are retried with exponential backoff on 429 and 5xx responses,
// grouped behind a circuit breaker per host, and dialed through a shared DNS cache.
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenk/backoff"
)

const defaultUserAgent = "feedchooser"

// RateLimiter controls request pacing.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Client is an HTTP client with retry logic for feed APIs.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	authFn     func(url string) (headerName, headerValue string)
	limiter    RateLimiter
	breakers   *Breakers
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseDelay sets the initial backoff interval.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRateLimiter paces every request attempt through l.
func WithRateLimiter(l RateLimiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithAuthFunc sets a function that returns an auth header for a given URL.
// Return empty strings to skip authentication for that URL.
func WithAuthFunc(fn func(url string) (headerName, headerValue string)) Option {
	return func(c *Client) {
		c.authFn = fn
	}
}

// WithBreakers shares a circuit breaker set between clients.
func WithBreakers(b *Breakers) Option {
	return func(c *Client) {
		c.breakers = b
	}
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return NewClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: NewTransport(),
		},
		userAgent:  defaultUserAgent,
		maxRetries: 5,
		baseDelay:  500 * time.Millisecond,
		breakers:   NewBreakers(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithUserAgent returns a copy of the client that sends ua as its User-Agent.
func (c *Client) WithUserAgent(ua string) *Client {
	clone := *c
	clone.userAgent = ua
	return &clone
}

// WithBasicAuth returns a copy of the client that authenticates every request
// with the given username and password.
func (c *Client) WithBasicAuth(username, password string) *Client {
	clone := *c
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	clone.authFn = func(string) (string, string) {
		return "Authorization", "Basic " + token
	}
	return &clone
}

// Breakers exposes the client's circuit breakers (for health reporting).
func (c *Client) Breakers() *Breakers {
	return c.breakers
}

// GetJSON fetches url and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// GetText fetches url and returns the body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetBody fetches url and returns the raw response body.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url)
}

// Head issues a HEAD request and returns the status code.
func (c *Client) Head(ctx context.Context, url string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head request: %w", err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, method, url string) ([]byte, error) {
	host, breaker := c.breakers.For(url)
	if !breaker.Ready() {
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, host)
	}

	var (
		body      []byte
		permanent error
	)
	op := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				permanent = err
				return nil
			}
		}

		b, err := c.once(ctx, method, url)
		if err == nil {
			body = b
			permanent = nil
			return nil
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.retryable() {
			return err
		}
		// Not found, client errors and transport failures are not retried.
		permanent = err
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.baseDelay
	expBackoff.MaxElapsedTime = 2 * time.Minute
	expBackoff.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.maxRetries)), ctx)
	err := backoff.Retry(op, policy)
	if err == nil {
		err = permanent
	}
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		err = ctxErr
	}

	switch {
	case err == nil:
		breaker.Success()
	case countsAsFailure(err):
		breaker.Fail()
	}

	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
			retryAfter, _ := strconv.Atoi(httpErr.Body)
			return nil, &RateLimitError{RetryAfter: retryAfter}
		}
		return nil, err
	}
	return body, nil
}

// countsAsFailure reports whether err says something about the host's health.
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.retryable()
	}
	return true
}

func (c *Client) once(ctx context.Context, method, url string) ([]byte, error) {
	req, err := c.newRequest(ctx, method, url)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: string(snippet)}
		if resp.StatusCode == http.StatusTooManyRequests {
			httpErr.Body = resp.Header.Get("Retry-After")
		}
		return nil, httpErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, application/atom+xml;q=0.9, */*;q=0.8")
	if c.authFn != nil {
		if name, value := c.authFn(url); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}
	return req, nil
}
