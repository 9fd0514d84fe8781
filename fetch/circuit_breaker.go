package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/git-pkgs/feedchooser/client"
)

// CircuitBreakerFetcher wraps a Fetcher with a circuit breaker per feed host.
// Sharing the Breakers of a client.Client makes search failures and download
// failures trip the same breaker.
type CircuitBreakerFetcher struct {
	fetcher  *Fetcher
	breakers *client.Breakers
}

// NewCircuitBreakerFetcher wraps f. A nil breakers gets a fresh set.
func NewCircuitBreakerFetcher(f *Fetcher, breakers *client.Breakers) *CircuitBreakerFetcher {
	if breakers == nil {
		breakers = client.NewBreakers()
	}
	return &CircuitBreakerFetcher{fetcher: f, breakers: breakers}
}

// Fetch wraps the underlying fetcher's Fetch with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Artifact, error) {
	if _, ok := localPath(fetchURL); ok {
		return cbf.fetcher.Fetch(ctx, fetchURL)
	}

	host, breaker := cbf.breakers.For(fetchURL)
	if !breaker.Ready() {
		return nil, fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var (
		artifact *Artifact
		fetchErr error
	)
	err := breaker.Call(func() error {
		artifact, fetchErr = cbf.fetcher.Fetch(ctx, fetchURL)
		return healthError(fetchErr)
	}, 0)
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// healthError drops errors that say nothing about the host: a missing
// archive or a canceled request should not trip the breaker.
func healthError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Head wraps the underlying fetcher's Head with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Head(ctx context.Context, headURL string) (size int64, contentType string, err error) {
	if _, ok := localPath(headURL); ok {
		return cbf.fetcher.Head(ctx, headURL)
	}

	host, breaker := cbf.breakers.For(headURL)
	if !breaker.Ready() {
		return 0, "", fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var headErr error
	err = breaker.Call(func() error {
		size, contentType, headErr = cbf.fetcher.Head(ctx, headURL)
		return healthError(headErr)
	}, 0)
	if headErr != nil {
		return 0, "", headErr
	}
	return size, contentType, err
}

// BreakerState reports "open" or "closed" per host.
func (cbf *CircuitBreakerFetcher) BreakerState() map[string]string {
	return cbf.breakers.State()
}
