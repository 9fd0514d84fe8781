package nuget

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/git-pkgs/feedchooser/internal/core"
)

func init() {
	core.Register(core.KindV2, func(src core.Source, c *core.Client) (core.Feed, error) {
		return NewV2(src, c), nil
	})
}

// V2 is a feed backed by a NuGet v2 OData endpoint.
type V2 struct {
	src     core.Source
	baseURL string
	client  *core.Client
	parser  *gofeed.Parser
}

// NewV2 creates a feed for the OData endpoint at src.URL.
func NewV2(src core.Source, c *core.Client) *V2 {
	return &V2{
		src:     src,
		baseURL: strings.TrimSuffix(src.URL, "/"),
		client:  authenticated(c, src),
		parser:  gofeed.NewParser(),
	}
}

func (f *V2) Kind() core.Kind {
	return core.KindV2
}

func (f *V2) Source() core.Source {
	return f.src
}

// URLs returns links for a package.
func (f *V2) URLs() core.URLBuilder {
	return &core.BaseURLs{
		DownloadFn: f.downloadURL,
	}
}

// odataString quotes a value as an OData string literal.
func odataString(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func (f *V2) Search(ctx context.Context, req core.SearchRequest) ([]core.SearchResult, error) {
	filter := "IsLatestVersion"
	if req.IncludePrerelease {
		filter = "IsAbsoluteLatestVersion"
	}

	q := url.Values{}
	q.Set("searchTerm", odataString(req.Term))
	q.Set("targetFramework", "''")
	q.Set("includePrerelease", strconv.FormatBool(req.IncludePrerelease))
	q.Set("$skip", strconv.Itoa(req.Skip))
	q.Set("$top", strconv.Itoa(req.Take))
	q.Set("$filter", filter)

	entries, err := f.fetchEntries(ctx, f.baseURL+"/Search()?"+q.Encode())
	if err != nil {
		return nil, err
	}

	results := make([]core.SearchResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, e.result())
	}
	return results, nil
}

// FetchVersions lists every version of a package.
func (f *V2) FetchVersions(ctx context.Context, id string) ([]core.Version, error) {
	q := url.Values{}
	q.Set("id", odataString(id))

	entries, err := f.fetchEntries(ctx, f.baseURL+"/FindPackagesById()?"+q.Encode())
	if err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Source: f.src.URL, Name: id}
		}
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &core.NotFoundError{Source: f.src.URL, Name: id}
	}

	versions := make([]core.Version, 0, len(entries))
	for _, e := range entries {
		r := e.result()
		var status core.VersionStatus
		if r.IsUnlisted() || e.text("IsListed") == "false" {
			status = core.StatusYanked
		}
		versions = append(versions, core.Version{
			Number:      r.Version,
			PublishedAt: r.Published,
			Status:      status,
			Metadata: map[string]any{
				"downloads": e.number("VersionDownloadCount"),
			},
		})
	}
	return versions, nil
}

// DownloadURL returns the package endpoint of the feed.
func (f *V2) DownloadURL(ctx context.Context, id, version string) (string, error) {
	return f.downloadURL(id, version), nil
}

func (f *V2) downloadURL(id, version string) string {
	return fmt.Sprintf("%s/package/%s/%s", f.baseURL, url.PathEscape(id), url.PathEscape(version))
}

func (f *V2) fetchEntries(ctx context.Context, rawURL string) ([]entry, error) {
	body, err := f.client.GetBody(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	entries := make([]entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, newEntry(item))
	}
	return entries, nil
}

// entry is one Atom entry with its OData properties.
type entry struct {
	item  *gofeed.Item
	props map[string][]ext.Extension
}

func newEntry(item *gofeed.Item) entry {
	e := entry{item: item}
	if m, ok := item.Extensions["m"]; ok {
		if props := m["properties"]; len(props) > 0 {
			e.props = props[0].Children
		}
	}
	return e
}

func (e entry) text(name string) string {
	values := e.props[name]
	if len(values) == 0 {
		return ""
	}
	if values[0].Attrs["null"] == "true" {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

func (e entry) number(name string) int64 {
	n, _ := strconv.ParseInt(e.text(name), 10, 64)
	return n
}

func (e entry) result() core.SearchResult {
	id := e.text("Id")
	if id == "" {
		id = e.item.Title
	}

	var authors []string
	if v := e.text("Authors"); v != "" {
		authors = splitList(v)
	} else {
		for _, a := range e.item.Authors {
			authors = append(authors, splitList(a.Name)...)
		}
	}

	summary := e.text("Summary")
	if summary == "" {
		summary = e.item.Description
	}

	version := e.text("Version")
	prerelease := e.text("IsPrerelease") == "true" || core.IsPrerelease(version)

	return core.SearchResult{
		ID:            id,
		Version:       version,
		Title:         e.text("Title"),
		Description:   e.text("Description"),
		Summary:       summary,
		Authors:       authors,
		Tags:          strings.Fields(e.text("Tags")),
		DownloadCount: e.number("DownloadCount"),
		Published:     parseODataTime(e.text("Published")),
		ProjectURL:    e.text("ProjectUrl"),
		IconURL:       e.text("IconUrl"),
		LicenseURL:    e.text("LicenseUrl"),
		Prerelease:    prerelease,
	}
}

var odataTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

// parseODataTime parses an Edm.DateTime, which v2 feeds send without a zone.
func parseODataTime(v string) time.Time {
	for _, layout := range odataTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
