package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/feedchooser/client"
	"github.com/git-pkgs/feedchooser/internal/core"
)

var (
	ErrNoDownloadURL = errors.New("no download URL available")
	ErrNoVersion     = errors.New("package has no installable version")
)

// NuGetOrgFlatContainer is the PackageBaseAddress of nuget.org.
const NuGetOrgFlatContainer = "https://api.nuget.org/v3-flatcontainer"

// ArtifactInfo describes a downloadable .nupkg.
type ArtifactInfo struct {
	ID       string
	Version  string
	URL      string
	Filename string
}

// Resolver works out where a package version can be downloaded from.
type Resolver struct{}

// NewResolver creates a URL resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the archive for id at version on feed. An empty version
// resolves to the newest listed, non-deprecated one.
func (r *Resolver) Resolve(ctx context.Context, feed core.Feed, id, version string) (*ArtifactInfo, error) {
	if version == "" {
		lister, ok := feed.(core.VersionLister)
		if !ok {
			return nil, fmt.Errorf("%s: %w", id, ErrNoVersion)
		}
		latest, err := core.FetchLatestVersion(ctx, lister, id)
		if err != nil {
			return nil, fmt.Errorf("fetching versions: %w", err)
		}
		if latest == nil {
			return nil, fmt.Errorf("%s: %w", id, ErrNoVersion)
		}
		version = latest.Number
	}

	url, err := r.downloadURL(ctx, feed, id, version)
	if err != nil {
		return nil, err
	}
	return &ArtifactInfo{
		ID:       id,
		Version:  version,
		URL:      url,
		Filename: Filename(id, version),
	}, nil
}

func (r *Resolver) downloadURL(ctx context.Context, feed core.Feed, id, version string) (string, error) {
	if dl, ok := feed.(core.DownloadURLResolver); ok {
		url, err := dl.DownloadURL(ctx, id, version)
		if errors.Is(err, client.ErrNotFound) {
			return "", fmt.Errorf("%s %s: %w", id, version, ErrNotFound)
		}
		if err != nil {
			return "", err
		}
		if url != "" {
			return url, nil
		}
	}

	// Packages on nuget.org have predictable URLs even without a resolver.
	if feed.Kind() == core.KindV3 && strings.EqualFold(client.HostOf(feed.Source().URL), "api.nuget.org") {
		return client.FlatContainerURL(NuGetOrgFlatContainer, id, version), nil
	}
	return "", ErrNoDownloadURL
}

// Filename is the conventional archive name, lower-cased as the flat container stores it.
func Filename(id, version string) string {
	return fmt.Sprintf("%s.%s.nupkg", strings.ToLower(id), strings.ToLower(version))
}

// Save downloads info into dir and returns the written path. A partial file is removed on failure.
func Save(ctx context.Context, f FetcherInterface, info *ArtifactInfo, dir string) (string, error) {
	artifact, err := f.Fetch(ctx, info.URL)
	if err != nil {
		return "", err
	}
	defer func() { _ = artifact.Body.Close() }()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	path := filepath.Join(dir, info.Filename)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}

	n, err := io.Copy(out, artifact.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && artifact.Size >= 0 && n != artifact.Size {
		err = fmt.Errorf("short download: got %d of %d bytes", n, artifact.Size)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("saving %s: %w", info.Filename, err)
	}
	return path, nil
}
