package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/git-pkgs/feedchooser/client"
	"github.com/git-pkgs/feedchooser/internal/core"
)

const nupkgBody = "PK\x03\x04 not really a zip"

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(nupkgBody))
	}))
	defer server.Close()

	artifact, err := NewFetcher().Fetch(context.Background(), server.URL+"/newtonsoft.json/13.0.3/newtonsoft.json.13.0.3.nupkg")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if artifact.Size != int64(len(nupkgBody)) {
		t.Errorf("Size = %d, want %d", artifact.Size, len(nupkgBody))
	}
	if artifact.ETag != `"v1"` {
		t.Errorf("ETag = %q", artifact.ETag)
	}
	body, _ := io.ReadAll(artifact.Body)
	if string(body) != nupkgBody {
		t.Errorf("body = %q", body)
	}
}

func TestFetchStatusHandling(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		retries  int
		wantErr  error
		wantHits int32
	}{
		{"not found is not retried", []int{404}, 3, ErrNotFound, 1},
		{"rate limit then success", []int{429, 429, 200}, 3, nil, 3},
		{"server error then success", []int{503, 200}, 3, nil, 2},
		{"server errors exhaust retries", []int{503, 503, 503, 503}, 2, ErrUpstreamDown, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(hits.Add(1)) - 1
				status := tt.statuses[min(n, len(tt.statuses)-1)]
				w.WriteHeader(status)
				if status == http.StatusOK {
					_, _ = w.Write([]byte(nupkgBody))
				}
			}))
			defer server.Close()

			f := NewFetcher(WithMaxRetries(tt.retries), WithBaseDelay(time.Millisecond))
			artifact, err := f.Fetch(context.Background(), server.URL+"/pkg.nupkg")
			if artifact != nil {
				_ = artifact.Body.Close()
			}

			if tt.wantErr == nil && err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fetch error = %v, want %v", err, tt.wantErr)
			}
			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("requests = %d, want %d", got, tt.wantHits)
			}
		})
	}
}

func TestFetchClientErrorIsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewFetcher().Fetch(context.Background(), server.URL+"/pkg.nupkg")
	var httpErr *client.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Fetch error = %v, want 401 HTTPError", err)
	}
}

func TestFetchContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(nupkgBody))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := NewFetcher().Fetch(ctx, server.URL+"/pkg.nupkg"); err == nil {
		t.Error("expected error on context cancellation")
	}
}

func TestFetchCredentials(t *testing.T) {
	var user, pass string
	var ok bool
	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(nupkgBody))
	}))
	defer server.Close()

	f := NewFetcher(
		WithCredentials(&core.Credentials{Username: "ci", Password: "secret"}),
		WithUserAgent("feedchooser-test"),
	)
	artifact, err := f.Fetch(context.Background(), server.URL+"/pkg.nupkg")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	_ = artifact.Body.Close()

	if !ok || user != "ci" || pass != "secret" {
		t.Errorf("basic auth = %q/%q (%v)", user, pass, ok)
	}
	if ua != "feedchooser-test" {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.1.0.0.nupkg")
	if err := os.WriteFile(path, []byte(nupkgBody), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher()
	for _, url := range []string{path, "file://" + path} {
		artifact, err := f.Fetch(context.Background(), url)
		if err != nil {
			t.Fatalf("Fetch(%q) failed: %v", url, err)
		}
		body, _ := io.ReadAll(artifact.Body)
		_ = artifact.Body.Close()
		if string(body) != nupkgBody {
			t.Errorf("body = %q", body)
		}
	}

	size, _, err := f.Head(context.Background(), path)
	if err != nil || size != int64(len(nupkgBody)) {
		t.Errorf("Head = %d, %v", size, err)
	}

	if _, err := f.Fetch(context.Background(), path+".missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file error = %v, want ErrNotFound", err)
	}
}

func TestHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Method = %s, want HEAD", r.Method)
		}
		if r.URL.Path == "/missing.nupkg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", "12345")
	}))
	defer server.Close()

	f := NewFetcher()
	size, contentType, err := f.Head(context.Background(), server.URL+"/pkg.nupkg")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if size != 12345 || contentType != "application/octet-stream" {
		t.Errorf("Head = %d, %q", size, contentType)
	}

	if _, _, err := f.Head(context.Background(), server.URL+"/missing.nupkg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Head = %v, want ErrNotFound", err)
	}
}
