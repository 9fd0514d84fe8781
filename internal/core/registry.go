package core

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Kind names the protocol a feed speaks.
type Kind string

const (
	KindV3    Kind = "v3"
	KindV2    Kind = "v2"
	KindLocal Kind = "local"
)

// Feed is the interface implemented by every feed kind.
type Feed interface {
	// Kind returns the protocol of this feed.
	Kind() Kind

	// Source returns the source the feed was opened from.
	Source() Source

	// Search returns one page of results. The page may hold fewer than
	// req.Take entries, which signals the end of the results.
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)
}

// VersionLister is implemented by feeds that can list every version of a package.
type VersionLister interface {
	FetchVersions(ctx context.Context, id string) ([]Version, error)
}

// DownloadURLResolver is implemented by feeds that know where their archives live.
type DownloadURLResolver interface {
	DownloadURL(ctx context.Context, id, version string) (string, error)
}

// Factory opens a feed for a source.
type Factory func(src Source, client *Client) (Feed, error)

var (
	factories = make(map[Kind]Factory)
	mu        sync.RWMutex
)

// Register adds a feed factory for a kind.
func Register(kind Kind, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
}

// ProbeKind works out which kind of feed a URL points at.
//
// A path with no scheme, or a file:// URL, is a local folder. An http(s) URL
// ending in .json is a v3 service index; any other http(s) URL is a v2 feed.
func ProbeKind(rawURL string) (Kind, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty URL", ErrInvalidSource)
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || isDriveLetter(u.Scheme) {
		return KindLocal, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return KindLocal, nil
	case "http", "https":
		if u.Host == "" {
			return "", fmt.Errorf("%w: %s has no host", ErrInvalidSource, trimmed)
		}
		if strings.HasSuffix(strings.ToLower(u.Path), ".json") {
			return KindV3, nil
		}
		return KindV2, nil
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	}
}

// isDriveLetter catches Windows paths such as C:\packages parsing as a scheme.
func isDriveLetter(scheme string) bool {
	return len(scheme) == 1
}

// Open creates the feed for a source, picking the factory by probing its URL.
func Open(src Source, client *Client) (Feed, error) {
	kind, err := ProbeKind(src.URL)
	if err != nil {
		return nil, err
	}

	mu.RLock()
	factory, ok := factories[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	if client == nil {
		client = DefaultClient()
	}

	return factory(src, client)
}

// SupportedKinds returns all registered feed kinds, sorted.
func SupportedKinds() []Kind {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]Kind, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
