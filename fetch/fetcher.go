// Package fetch downloads .nupkg archives from feeds, with retries, a circuit
// breaker per host and download URL resolution.
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenk/backoff"

	"github.com/git-pkgs/feedchooser/client"
	"github.com/git-pkgs/feedchooser/internal/core"
)

var (
	ErrNotFound     = errors.New("package archive not found")
	ErrRateLimited  = errors.New("rate limited by feed")
	ErrUpstreamDown = errors.New("feed unavailable")
)

// Artifact is an open package archive.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64 // -1 if unknown
	ContentType string
	ETag        string
}

// FetcherInterface is implemented by Fetcher and CircuitBreakerFetcher.
type FetcherInterface interface {
	Fetch(ctx context.Context, url string) (*Artifact, error)
	Head(ctx context.Context, url string) (size int64, contentType string, err error)
}

// Fetcher streams package archives. Plain paths and file:// URLs are opened
// from disk, so local feeds download through the same code.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	authFn     func(url string) (headerName, headerValue string)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the initial backoff interval.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithAuthFunc sets a function that returns an auth header for a given URL.
// Return empty strings to skip authentication for that URL.
func WithAuthFunc(fn func(url string) (headerName, headerValue string)) Option {
	return func(f *Fetcher) {
		f.authFn = fn
	}
}

// WithCredentials authenticates every request with basic auth. Zero credentials are ignored.
func WithCredentials(creds *core.Credentials) Option {
	return func(f *Fetcher) {
		if creds == nil || creds.IsZero() {
			return
		}
		token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
		f.authFn = func(string) (string, string) {
			return "Authorization", "Basic " + token
		}
	}
}

// NewFetcher creates a Fetcher dialing through the shared DNS cache.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout:   5 * time.Minute, // archives can be large
			Transport: client.NewTransport(),
		},
		userAgent:  "feedchooser",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch opens the archive at url. The caller must close Artifact.Body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Artifact, error) {
	if path, ok := localPath(url); ok {
		return openLocal(path)
	}

	var artifact *Artifact
	var permanent error
	op := func() error {
		a, err := f.doFetch(ctx, url)
		switch {
		case err == nil:
			artifact = a
			return nil
		case errors.Is(err, ErrRateLimited), errors.Is(err, ErrUpstreamDown):
			return err
		default:
			permanent = err
			return nil
		}
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = f.baseDelay
	expBackoff.RandomizationFactor = 0.1
	expBackoff.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(f.maxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if permanent != nil {
		return nil, permanent
	}
	return artifact, nil
}

func (f *Fetcher) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	if f.authFn != nil {
		if name, value := f.authFn(url); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}
	return req, nil
}

func contentLength(h http.Header) int64 {
	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n
		}
	}
	return -1
}

func (f *Fetcher) doFetch(ctx context.Context, url string) (*Artifact, error) {
	req, err := f.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching package: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return &Artifact{
			Body:        resp.Body,
			Size:        contentLength(resp.Header),
			ContentType: resp.Header.Get("Content-Type"),
			ETag:        resp.Header.Get("ETag"),
		}, nil

	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, ErrNotFound

	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, ErrRateLimited

	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, ErrUpstreamDown

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, &client.HTTPError{StatusCode: resp.StatusCode, URL: url, Body: string(body)}
	}
}

// Head checks that an archive exists without downloading it.
func (f *Fetcher) Head(ctx context.Context, url string) (size int64, contentType string, err error) {
	if path, ok := localPath(url); ok {
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return 0, "", ErrNotFound
		}
		if err != nil {
			return 0, "", err
		}
		return info.Size(), nupkgContentType, nil
	}

	req, err := f.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return 0, "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("head request: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, "", &client.HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
	return contentLength(resp.Header), resp.Header.Get("Content-Type"), nil
}

const nupkgContentType = "application/octet-stream"

// localPath reports whether url names a file on disk.
func localPath(url string) (string, bool) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return "", false
	}
	return strings.TrimPrefix(url, "file://"), true
}

func openLocal(path string) (*Artifact, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}
	size := int64(-1)
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	return &Artifact{Body: file, Size: size, ContentType: nupkgContentType}, nil
}
