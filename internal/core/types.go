// Package core provides shared types and the feed-kind registry.
package core

import (
	"strings"
	"time"
)

// Credentials authenticate against a private feed.
type Credentials struct {
	Username string
	Password string
}

// IsZero reports whether no credentials are set.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Source is a named feed location.
type Source struct {
	Name        string
	URL         string
	Credentials *Credentials
}

// NewSource returns a source whose name is its URL.
func NewSource(url string) Source {
	return Source{Name: url, URL: url}
}

// Equal compares sources by URL, ignoring case.
func (s Source) Equal(other Source) bool {
	return strings.EqualFold(s.URL, other.URL)
}

// Key identifies the feed behind a source in cache keys.
func (s Source) Key() string {
	return strings.ToLower(s.URL)
}

// IsZero reports whether the source has no URL.
func (s Source) IsZero() bool {
	return s.URL == ""
}

func (s Source) String() string {
	if s.Name != "" && s.Name != s.URL {
		return s.Name + " (" + s.URL + ")"
	}
	return s.URL
}

// SearchRequest is one page of a feed search.
type SearchRequest struct {
	Term              string
	Skip              int
	Take              int
	IncludePrerelease bool
}

// SearchResult is the metadata of one package as listed by a feed search.
type SearchResult struct {
	ID            string
	Version       string
	Title         string
	Description   string
	Summary       string
	Authors       []string
	Tags          []string
	DownloadCount int64
	Published     time.Time
	ProjectURL    string
	IconURL       string
	LicenseURL    string
	Verified      bool
	Prerelease    bool
	Versions      []string
}

// DisplayTitle returns the title, or the ID when the package has none.
func (r SearchResult) DisplayTitle() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return r.ID
}

// IsUnlisted reports whether the gallery marked the package as unpublished.
// Galleries report unlisted packages with a publish date of 1900-01-01.
func (r SearchResult) IsUnlisted() bool {
	y, m, d := r.Published.Date()
	return y == 1900 && m == time.January && d == 1
}

// Version represents a specific version of a package.
type Version struct {
	Number      string
	PublishedAt time.Time
	Status      VersionStatus // "", "yanked", "deprecated"
	Metadata    map[string]any
}

// VersionStatus represents the status of a package version.
type VersionStatus string

const (
	StatusNone       VersionStatus = ""
	StatusYanked     VersionStatus = "yanked"
	StatusDeprecated VersionStatus = "deprecated"
)
