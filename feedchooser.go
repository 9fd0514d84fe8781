// Package feedchooser searches NuGet package feeds.
//
// Feeds are opened by URL: v3 service indexes, v2 OData endpoints and local
// directories of .nupkg files are supported once their implementations are
// registered.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/feedchooser"
//		_ "github.com/git-pkgs/feedchooser/all"
//	)
//
//	feed, err := feedchooser.Open("https://api.nuget.org/v3/index.json", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := feed.Search(context.Background(), feedchooser.SearchRequest{Term: "json", Take: 15})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, r := range results {
//		fmt.Println(r.ID, r.Version)
//	}
package feedchooser

import (
	"context"

	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/feedchooser/client"
	"github.com/git-pkgs/feedchooser/internal/core"
)

// Re-export types from internal/core
type (
	// Feed is the interface implemented by every feed kind.
	Feed = core.Feed

	// VersionLister is implemented by feeds that can list a package's versions.
	VersionLister = core.VersionLister

	// DownloadURLResolver is implemented by feeds that know where archives live.
	DownloadURLResolver = core.DownloadURLResolver

	Kind          = core.Kind
	Source        = core.Source
	Credentials   = core.Credentials
	SearchRequest = core.SearchRequest
	SearchResult  = core.SearchResult
	Version       = core.Version
	VersionStatus = core.VersionStatus
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for feed APIs.
	Client = client.Client

	// URLBuilder constructs links for a package.
	URLBuilder = client.URLBuilder

	// RateLimiter controls request pacing.
	RateLimiter = client.RateLimiter
)

const (
	KindV3    = core.KindV3
	KindV2    = core.KindV2
	KindLocal = core.KindLocal

	StatusNone       = core.StatusNone
	StatusYanked     = core.StatusYanked
	StatusDeprecated = core.StatusDeprecated
)

// Re-export errors
var (
	ErrNotFound      = client.ErrNotFound
	ErrInvalidSource = core.ErrInvalidSource
	ErrUnknownKind   = core.ErrUnknownKind
	ErrCircuitOpen   = client.ErrCircuitOpen
)

// Error types
type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)

// Open returns the feed for url. The kind is worked out from the URL.
// If c is nil, DefaultClient() is used.
func Open(url string, c *Client) (Feed, error) {
	return core.Open(core.NewSource(url), c)
}

// OpenSource is Open for a source carrying a name or credentials.
func OpenSource(src Source, c *Client) (Feed, error) {
	return core.Open(src, c)
}

// NewSource returns a source for url, named after it.
func NewSource(url string) Source {
	return core.NewSource(url)
}

// ProbeKind reports which feed kind serves url.
func ProbeKind(url string) (Kind, error) {
	return core.ProbeKind(url)
}

// SupportedKinds returns all registered feed kinds.
// Note: kinds must be imported to be registered.
func SupportedKinds() []Kind {
	return core.SupportedKinds()
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	return client.NewClient(opts...)
}

// Option configures a Client.
type Option = client.Option

// WithTimeout sets the HTTP client timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the maximum number of retries.
var WithMaxRetries = client.WithMaxRetries

// BuildURLs returns a map of all non-empty links for a package.
// Keys are "gallery", "download", and "purl".
func BuildURLs(urls URLBuilder, id, version string) map[string]string {
	return client.BuildURLs(urls, id, version)
}

// PURL represents a parsed Package URL of any type.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:nuget/Newtonsoft.Json) and version PURLs
// (pkg:nuget/Newtonsoft.Json@13.0.3).
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// NuGetPURL is a Package URL known to be of type nuget.
type NuGetPURL = core.PURL

// ParseNuGetPURL parses a Package URL and rejects any type but nuget.
func ParseNuGetPURL(purlStr string) (*NuGetPURL, error) {
	return core.ParsePURL(purlStr)
}

// FetchLatestVersion returns the latest version that is neither yanked nor deprecated.
// Returns nil if no valid versions exist.
func FetchLatestVersion(ctx context.Context, lister VersionLister, id string) (*Version, error) {
	return core.FetchLatestVersion(ctx, lister, id)
}

// FormatDownloads renders a download count as 950, 1.2K, 3.4M or 5.6B.
func FormatDownloads(n int64) string {
	return core.FormatDownloads(n)
}
