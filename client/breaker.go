package client

import (
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// Breakers holds one circuit breaker per feed host.
type Breakers struct {
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// NewBreakers creates an empty breaker set.
func NewBreakers() *Breakers {
	return &Breakers{breakers: make(map[string]*circuit.Breaker)}
}

// For returns or creates the circuit breaker for the host of rawURL.
func (b *Breakers) For(rawURL string) (string, *circuit.Breaker) {
	host := HostOf(rawURL)

	b.mu.RLock()
	breaker, exists := b.breakers[host]
	b.mu.RUnlock()
	if exists {
		return host, breaker
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if breaker, exists := b.breakers[host]; exists {
		return host, breaker
	}

	// Trips after 5 consecutive failures
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	b.breakers[host] = breaker
	return host, breaker
}

// State reports "open" or "closed" per host.
func (b *Breakers) State() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]string, len(b.breakers))
	for host, breaker := range b.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

// HostOf extracts the grouping key for a URL: its host, or a truncated form of the raw string.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
