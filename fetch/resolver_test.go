package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/git-pkgs/feedchooser/client"
	"github.com/git-pkgs/feedchooser/internal/core"
)

// bareFeed can only search.
type bareFeed struct{ src core.Source }

func (f bareFeed) Kind() core.Kind     { return core.KindV3 }
func (f bareFeed) Source() core.Source { return f.src }
func (f bareFeed) Search(context.Context, core.SearchRequest) ([]core.SearchResult, error) {
	return nil, nil
}

// versionedFeed lists versions and resolves downloads under base.
type versionedFeed struct {
	bareFeed
	base     string
	versions []core.Version
}

func (f versionedFeed) FetchVersions(context.Context, string) ([]core.Version, error) {
	return f.versions, nil
}

func (f versionedFeed) DownloadURL(_ context.Context, id, version string) (string, error) {
	if version == "0.0.0" {
		return "", &client.NotFoundError{Source: f.src.URL, Name: id, Version: version}
	}
	return client.FlatContainerURL(f.base, id, version), nil
}

func TestResolve(t *testing.T) {
	feed := versionedFeed{
		bareFeed: bareFeed{src: core.NewSource("https://feed.example.com/v3/index.json")},
		base:     "https://feed.example.com/flat",
		versions: []core.Version{
			{Number: "1.0.0"},
			{Number: "2.0.0", Status: core.StatusDeprecated},
			{Number: "1.5.0"},
			{Number: "1.6.0-beta"},
		},
	}

	tests := []struct {
		name        string
		feed        core.Feed
		id, version string
		wantURL     string
		wantFile    string
		wantErr     error
	}{
		{
			name: "explicit version", feed: feed, id: "Demo.Lib", version: "1.0.0",
			wantURL:  "https://feed.example.com/flat/demo.lib/1.0.0/demo.lib.1.0.0.nupkg",
			wantFile: "demo.lib.1.0.0.nupkg",
		},
		{
			name: "latest skips deprecated", feed: feed, id: "Demo.Lib",
			wantURL:  "https://feed.example.com/flat/demo.lib/1.6.0-beta/demo.lib.1.6.0-beta.nupkg",
			wantFile: "demo.lib.1.6.0-beta.nupkg",
		},
		{
			name: "feed reports missing version", feed: feed, id: "Demo.Lib", version: "0.0.0",
			wantErr: ErrNotFound,
		},
		{
			name: "nuget.org without resolver", feed: bareFeed{src: core.NewSource("https://api.nuget.org/v3/index.json")},
			id: "Newtonsoft.Json", version: "13.0.3",
			wantURL:  "https://api.nuget.org/v3-flatcontainer/newtonsoft.json/13.0.3/newtonsoft.json.13.0.3.nupkg",
			wantFile: "newtonsoft.json.13.0.3.nupkg",
		},
		{
			name: "other feed without resolver", feed: bareFeed{src: core.NewSource("https://feed.example.com/v3/index.json")},
			id: "Demo", version: "1.0.0",
			wantErr: ErrNoDownloadURL,
		},
		{
			name: "no version and no lister", feed: bareFeed{src: core.NewSource("https://feed.example.com/v3/index.json")},
			id: "Demo",
			wantErr: ErrNoVersion,
		},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := r.Resolve(context.Background(), tt.feed, tt.id, tt.version)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if info.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", info.URL, tt.wantURL)
			}
			if info.Filename != tt.wantFile {
				t.Errorf("Filename = %q, want %q", info.Filename, tt.wantFile)
			}
		})
	}
}

func TestSave(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.nupkg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(nupkgBody))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "packages")
	f := NewFetcher(WithBaseDelay(time.Millisecond))

	path, err := Save(context.Background(), f, &ArtifactInfo{URL: server.URL + "/pkg.nupkg", Filename: "demo.1.0.0.nupkg"}, dir)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(dir, "demo.1.0.0.nupkg") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != nupkgBody {
		t.Errorf("saved content = %q, %v", data, err)
	}

	_, err = Save(context.Background(), f, &ArtifactInfo{URL: server.URL + "/gone.nupkg", Filename: "gone.nupkg"}, dir)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Save error = %v, want ErrNotFound", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "gone.nupkg")); !os.IsNotExist(statErr) {
		t.Error("no file should be left behind for a failed download")
	}
}
