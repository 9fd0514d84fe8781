// Package nuget provides feeds for NuGet v3 service indexes and NuGet v2 OData endpoints.
package nuget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/git-pkgs/feedchooser/client"
	"github.com/git-pkgs/feedchooser/internal/core"
)

const (
	// DefaultURL is the nuget.org service index.
	DefaultURL = "https://api.nuget.org/v3/index.json"

	galleryURL = "https://www.nuget.org/packages"
)

func init() {
	core.Register(core.KindV3, func(src core.Source, c *core.Client) (core.Feed, error) {
		return NewV3(src, c), nil
	})
}

// V3 is a feed backed by a NuGet v3 service index.
type V3 struct {
	src    core.Source
	client *core.Client
}

// NewV3 creates a feed for the service index at src.URL.
func NewV3(src core.Source, c *core.Client) *V3 {
	if src.URL == "" {
		src = core.Source{Name: "nuget.org", URL: DefaultURL}
	}
	return &V3{src: src, client: authenticated(c, src)}
}

// authenticated returns a client carrying the source's credentials, if it has any.
func authenticated(c *core.Client, src core.Source) *core.Client {
	if c == nil {
		c = core.DefaultClient()
	}
	if src.Credentials == nil || src.Credentials.IsZero() {
		return c
	}
	return c.WithBasicAuth(src.Credentials.Username, src.Credentials.Password)
}

func (f *V3) Kind() core.Kind {
	return core.KindV3
}

func (f *V3) Source() core.Source {
	return f.src
}

// URLs returns links for a package. The download link is only known once the
// service index has been resolved.
func (f *V3) URLs() core.URLBuilder {
	urls := &core.BaseURLs{
		DownloadFn: func(id, version string) string {
			idx, ok := indexes.peek(f.src.URL)
			if !ok {
				return ""
			}
			base, ok := idx.find(packageBaseTypes)
			if !ok {
				return ""
			}
			return client.FlatContainerURL(base, id, version)
		},
	}
	if isNuGetOrg(f.src.URL) {
		urls.GalleryFn = func(id, version string) string {
			if version == "" {
				return fmt.Sprintf("%s/%s", galleryURL, id)
			}
			return fmt.Sprintf("%s/%s/%s", galleryURL, id, version)
		}
	}
	return urls
}

func isNuGetOrg(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "api.nuget.org" || host == "www.nuget.org" || host == "nuget.org"
}

type searchResponse struct {
	TotalHits int         `json:"totalHits"`
	Data      []searchHit `json:"data"`
}

type searchHit struct {
	ID             string          `json:"id"`
	Version        string          `json:"version"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Summary        string          `json:"summary"`
	IconURL        string          `json:"iconUrl"`
	LicenseURL     string          `json:"licenseUrl"`
	ProjectURL     string          `json:"projectUrl"`
	Tags           stringList      `json:"tags"`
	Authors        stringList      `json:"authors"`
	TotalDownloads int64           `json:"totalDownloads"`
	Verified       bool            `json:"verified"`
	Versions       []searchVersion `json:"versions"`
}

type searchVersion struct {
	Version   string `json:"version"`
	Downloads int64  `json:"downloads"`
}

// stringList accepts either a JSON string or an array of strings.
// Feeds disagree on the shape of authors and tags.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*s = splitList(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (f *V3) Search(ctx context.Context, req core.SearchRequest) ([]core.SearchResult, error) {
	idx, err := indexes.resolve(ctx, f.client, f.src.URL)
	if err != nil {
		return nil, err
	}
	base, ok := idx.find(searchTypes)
	if !ok {
		return nil, fmt.Errorf("%s: service index has no SearchQueryService", f.src.URL)
	}

	q := url.Values{}
	q.Set("q", req.Term)
	q.Set("skip", strconv.Itoa(req.Skip))
	q.Set("take", strconv.Itoa(req.Take))
	q.Set("prerelease", strconv.FormatBool(req.IncludePrerelease))
	q.Set("semVerLevel", "2.0.0")

	var resp searchResponse
	if err := f.client.GetJSON(ctx, base+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	results := make([]core.SearchResult, 0, len(resp.Data))
	for _, hit := range resp.Data {
		versions := make([]string, 0, len(hit.Versions))
		for _, v := range hit.Versions {
			versions = append(versions, v.Version)
		}
		results = append(results, core.SearchResult{
			ID:            hit.ID,
			Version:       hit.Version,
			Title:         hit.Title,
			Description:   hit.Description,
			Summary:       hit.Summary,
			Authors:       hit.Authors,
			Tags:          hit.Tags,
			DownloadCount: hit.TotalDownloads,
			ProjectURL:    hit.ProjectURL,
			IconURL:       hit.IconURL,
			LicenseURL:    hit.LicenseURL,
			Verified:      hit.Verified,
			Prerelease:    core.IsPrerelease(hit.Version),
			Versions:      versions,
		})
	}
	return results, nil
}

type registrationResponse struct {
	Count int                `json:"count"`
	Items []registrationPage `json:"items"`
}

type registrationPage struct {
	ID    string             `json:"@id"`
	Count int                `json:"count"`
	Lower string             `json:"lower"`
	Upper string             `json:"upper"`
	Items []registrationLeaf `json:"items"`
}

type registrationLeaf struct {
	CatalogEntry   catalogEntry `json:"catalogEntry"`
	PackageContent string       `json:"packageContent"`
}

type catalogEntry struct {
	ID                string           `json:"id"`
	Version           string           `json:"version"`
	Description       string           `json:"description"`
	Authors           stringList       `json:"authors"`
	ProjectURL        string           `json:"projectUrl"`
	LicenseExpression string           `json:"licenseExpression"`
	LicenseURL        string           `json:"licenseUrl"`
	Published         string           `json:"published"`
	Listed            *bool            `json:"listed,omitempty"`
	Tags              stringList       `json:"tags"`
	Deprecation       *deprecationInfo `json:"deprecation,omitempty"`
}

type deprecationInfo struct {
	Message string   `json:"message"`
	Reasons []string `json:"reasons"`
}

func (e catalogEntry) unlisted() bool {
	if e.Listed != nil && !*e.Listed {
		return true
	}
	return strings.HasPrefix(e.Published, "1900-01-01")
}

// FetchVersions lists every version in the package's registration index.
func (f *V3) FetchVersions(ctx context.Context, id string) ([]core.Version, error) {
	idx, err := indexes.resolve(ctx, f.client, f.src.URL)
	if err != nil {
		return nil, err
	}
	base, ok := idx.find(registrationTypes)
	if !ok {
		return nil, fmt.Errorf("%s: service index has no RegistrationsBaseUrl", f.src.URL)
	}

	indexURL := fmt.Sprintf("%s/%s/index.json", strings.TrimSuffix(base, "/"), strings.ToLower(id))
	var resp registrationResponse
	if err := f.client.GetJSON(ctx, indexURL, &resp); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Source: f.src.URL, Name: id}
		}
		return nil, err
	}

	var versions []core.Version
	for _, page := range resp.Items {
		leaves := page.Items
		if len(leaves) == 0 && page.ID != "" {
			var remote registrationPage
			if err := f.client.GetJSON(ctx, page.ID, &remote); err != nil {
				return nil, fmt.Errorf("fetching registration page %s: %w", page.ID, err)
			}
			leaves = remote.Items
		}

		for _, leaf := range leaves {
			entry := leaf.CatalogEntry
			var publishedAt time.Time
			if entry.Published != "" {
				publishedAt, _ = time.Parse(time.RFC3339, entry.Published)
			}

			var status core.VersionStatus
			switch {
			case entry.unlisted():
				status = core.StatusYanked
			case entry.Deprecation != nil:
				status = core.StatusDeprecated
			}

			metadata := map[string]any{}
			if entry.LicenseExpression != "" {
				metadata["license"] = entry.LicenseExpression
			}
			if leaf.PackageContent != "" {
				metadata["packageContent"] = leaf.PackageContent
			}
			if entry.Deprecation != nil && entry.Deprecation.Message != "" {
				metadata["deprecation"] = entry.Deprecation.Message
			}

			versions = append(versions, core.Version{
				Number:      entry.Version,
				PublishedAt: publishedAt,
				Status:      status,
				Metadata:    metadata,
			})
		}
	}

	return versions, nil
}

// DownloadURL returns the flat container address of a package archive.
func (f *V3) DownloadURL(ctx context.Context, id, version string) (string, error) {
	idx, err := indexes.resolve(ctx, f.client, f.src.URL)
	if err != nil {
		return "", err
	}
	base, ok := idx.find(packageBaseTypes)
	if !ok {
		return "", fmt.Errorf("%s: service index has no PackageBaseAddress", f.src.URL)
	}
	return client.FlatContainerURL(base, id, version), nil
}
