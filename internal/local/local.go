// Package local provides a feed over a folder of .nupkg files.
package local

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/git-pkgs/feedchooser/internal/core"
)

func init() {
	core.Register(core.KindLocal, func(src core.Source, _ *core.Client) (core.Feed, error) {
		return New(src)
	})
}

// Feed lists the packages stored under a directory.
type Feed struct {
	src core.Source
	dir string
}

// New creates a feed for the folder named by src.URL, a plain path or a file:// URL.
func New(src core.Source) (*Feed, error) {
	dir, err := Dir(src.URL)
	if err != nil {
		return nil, err
	}
	return &Feed{src: src, dir: dir}, nil
}

// Dir converts a local source URL to a filesystem path.
func Dir(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if strings.HasPrefix(strings.ToLower(raw), "file://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", core.ErrInvalidSource, err)
		}
		raw = u.Path
	}
	if raw == "" {
		return "", fmt.Errorf("%w: empty path", core.ErrInvalidSource)
	}
	return filepath.Clean(raw), nil
}

func (f *Feed) Kind() core.Kind {
	return core.KindLocal
}

func (f *Feed) Source() core.Source {
	return f.src
}

// URLs returns links for a package. Local packages have no gallery page.
func (f *Feed) URLs() core.URLBuilder {
	return &core.BaseURLs{}
}

// Package is a .nupkg found on disk.
type Package struct {
	Path   string
	Result core.SearchResult
}

type nuspec struct {
	Metadata struct {
		ID          string `xml:"id"`
		Version     string `xml:"version"`
		Title       string `xml:"title"`
		Authors     string `xml:"authors"`
		Description string `xml:"description"`
		Summary     string `xml:"summary"`
		Tags        string `xml:"tags"`
		ProjectURL  string `xml:"projectUrl"`
		IconURL     string `xml:"iconUrl"`
		LicenseURL  string `xml:"licenseUrl"`
	} `xml:"metadata"`
}

// Scan reads every package under the feed's directory.
func (f *Feed) Scan(ctx context.Context) ([]Package, error) {
	var pkgs []Package
	err := filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".nupkg") {
			return nil
		}

		pkg, err := readPackage(path)
		if err != nil {
			// Skip archives we cannot read rather than failing the whole listing.
			return nil
		}
		pkgs = append(pkgs, pkg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", f.dir, err)
	}
	return pkgs, nil
}

func readPackage(path string) (Package, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Package{}, err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return Package{}, err
	}
	defer func() { _ = zr.Close() }()

	for _, file := range zr.File {
		// The manifest sits at the archive root.
		if strings.Contains(file.Name, "/") || !strings.EqualFold(filepath.Ext(file.Name), ".nuspec") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return Package{}, err
		}
		spec, err := decodeNuspec(rc)
		_ = rc.Close()
		if err != nil {
			return Package{}, err
		}

		m := spec.Metadata
		return Package{
			Path: path,
			Result: core.SearchResult{
				ID:          m.ID,
				Version:     m.Version,
				Title:       m.Title,
				Description: m.Description,
				Summary:     m.Summary,
				Authors:     splitAuthors(m.Authors),
				Tags:        strings.Fields(m.Tags),
				Published:   info.ModTime(),
				ProjectURL:  m.ProjectURL,
				IconURL:     m.IconURL,
				LicenseURL:  m.LicenseURL,
				Prerelease:  core.IsPrerelease(m.Version),
			},
		}, nil
	}
	return Package{}, errors.New("no nuspec in package")
}

func decodeNuspec(r io.Reader) (*nuspec, error) {
	var spec nuspec
	if err := xml.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("decoding nuspec: %w", err)
	}
	if spec.Metadata.ID == "" || spec.Metadata.Version == "" {
		return nil, errors.New("nuspec is missing id or version")
	}
	return &spec, nil
}

func splitAuthors(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// latest keeps the highest version per id, optionally ignoring prereleases.
// The result also records every version seen for each id.
func latest(pkgs []Package, prerelease bool) map[string]Package {
	byID := make(map[string]Package)
	versions := make(map[string][]string)
	for _, p := range pkgs {
		if p.Result.Prerelease && !prerelease {
			continue
		}
		key := strings.ToLower(p.Result.ID)
		versions[key] = append(versions[key], p.Result.Version)
		cur, ok := byID[key]
		if !ok || core.CompareVersions(p.Result.Version, cur.Result.Version) > 0 {
			byID[key] = p
		}
	}
	for key, p := range byID {
		vs := versions[key]
		sort.Slice(vs, func(i, j int) bool { return core.CompareVersions(vs[i], vs[j]) < 0 })
		p.Result.Versions = vs
		byID[key] = p
	}
	return byID
}

func (f *Feed) Search(ctx context.Context, req core.SearchRequest) ([]core.SearchResult, error) {
	pkgs, err := f.Scan(ctx)
	if err != nil {
		return nil, err
	}

	byID := latest(pkgs, req.IncludePrerelease)
	ids := make([]string, 0, len(byID))
	for key := range byID {
		ids = append(ids, key)
	}

	term := strings.ToLower(strings.TrimSpace(req.Term))
	var ordered []string
	if term == "" {
		sort.Strings(ids)
		ordered = ids
	} else {
		matches := fuzzy.RankFindFold(term, ids)
		sort.Slice(matches, func(i, j int) bool {
			if matches[i].Distance != matches[j].Distance {
				return matches[i].Distance < matches[j].Distance
			}
			return matches[i].Target < matches[j].Target
		})
		ordered = make([]string, 0, len(matches))
		for _, m := range matches {
			ordered = append(ordered, m.Target)
		}
	}

	start := min(max(req.Skip, 0), len(ordered))
	end := len(ordered)
	if req.Take > 0 {
		end = min(start+req.Take, len(ordered))
	}

	results := make([]core.SearchResult, 0, end-start)
	for _, key := range ordered[start:end] {
		results = append(results, byID[key].Result)
	}
	return results, nil
}

// FetchVersions lists every version of id on disk.
func (f *Feed) FetchVersions(ctx context.Context, id string) ([]core.Version, error) {
	pkgs, err := f.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var versions []core.Version
	for _, p := range pkgs {
		if !strings.EqualFold(p.Result.ID, id) {
			continue
		}
		versions = append(versions, core.Version{
			Number:      p.Result.Version,
			PublishedAt: p.Result.Published,
			Metadata:    map[string]any{"path": p.Path},
		})
	}
	if len(versions) == 0 {
		return nil, &core.NotFoundError{Source: f.src.URL, Name: id}
	}
	return versions, nil
}

// DownloadURL returns the path of the package archive on disk.
func (f *Feed) DownloadURL(ctx context.Context, id, version string) (string, error) {
	pkgs, err := f.Scan(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range pkgs {
		if strings.EqualFold(p.Result.ID, id) && strings.EqualFold(p.Result.Version, version) {
			return p.Path, nil
		}
	}
	return "", &core.NotFoundError{Source: f.src.URL, Name: id, Version: version}
}
