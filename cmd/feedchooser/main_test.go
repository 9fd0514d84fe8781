package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/git-pkgs/feedchooser/internal/core"
)

const nupkgBody = "PK\x03\x04demo"

// execute runs the command tree with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// isolate points HOME at a fresh directory so config and settings start empty.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

type feedServer struct {
	*httptest.Server
	mu      sync.Mutex
	queries []string
	total   int
}

func (s *feedServer) indexURL() string { return s.URL + "/v3/index.json" }

func (s *feedServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func newFeedServer(t *testing.T, total int) *feedServer {
	t.Helper()
	fs := &feedServer{total: total}

	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v3/index.json":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"version": "3.0.0",
				"resources": []map[string]string{
					{"@id": fs.URL + "/query", "@type": "SearchQueryService/3.5.0"},
					{"@id": fs.URL + "/reg/", "@type": "RegistrationsBaseUrl/3.6.0"},
					{"@id": fs.URL + "/flat/", "@type": "PackageBaseAddress/3.0.0"},
				},
			})

		case "/query":
			q := r.URL.Query()
			fs.mu.Lock()
			fs.queries = append(fs.queries, q.Get("q"))
			fs.mu.Unlock()

			if q.Get("q") == "broken" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			skip, _ := strconv.Atoi(q.Get("skip"))
			take, _ := strconv.Atoi(q.Get("take"))
			var data []map[string]any
			for i := skip; i < skip+take && i < fs.total; i++ {
				data = append(data, map[string]any{
					"id":             fmt.Sprintf("Demo.%d", i),
					"version":        "1.0.0",
					"description":    "A demo package",
					"totalDownloads": 1000,
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"totalHits": fs.total, "data": data})

		case "/reg/demo.lib/index.json":
			leaf := func(v, published string) map[string]any {
				return map[string]any{"catalogEntry": map[string]any{"version": v, "published": published}}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"count": 1,
				"items": []map[string]any{{
					"count": 3,
					"items": []map[string]any{
						leaf("1.0.0", "2024-01-02T00:00:00Z"),
						leaf("2.0.0-beta", "2024-03-04T00:00:00Z"),
						leaf("1.5.0", "2024-02-03T00:00:00Z"),
					},
				}},
			})

		case "/flat/demo.lib/1.0.0/demo.lib.1.0.0.nupkg":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte(nupkgBody))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "feedchooser dev") {
		t.Errorf("Expected version output to contain 'feedchooser dev', got: %s", out)
	}
	if !strings.Contains(out, "github.com/git-pkgs/feedchooser") {
		t.Errorf("Expected version output to contain the module path, got: %s", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "feedchooser", "config.toml")

	out, err := execute(t, "--config", path, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "Generated default configuration at: "+path) {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	if _, err := execute(t, "--config", path, "config", "init"); err == nil {
		t.Error("config init should refuse to overwrite an existing file")
	}

	out, err = execute(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "page_size = 15") {
		t.Errorf("config show output missing page_size: %s", out)
	}
}

func TestSearchCommand(t *testing.T) {
	isolate(t)
	server := newFeedServer(t, 20)

	out, err := execute(t, "--source", server.indexURL(), "search", "demo", "--pages", "3")
	if err != nil {
		t.Fatalf("search failed: %v\n%s", err, out)
	}

	for _, want := range []string{"Demo.0 1.0.0", "Demo.19 1.0.0", "1-20", "20.0K downloads", "A demo package"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "more with --pages") {
		t.Errorf("a short second page should end the listing:\n%s", out)
	}

	if got := server.seen(); len(got) != 2 || got[0] != "demo" {
		t.Errorf("queries = %v, want two pages for demo", got)
	}
}

func TestSearchCommandSinglePage(t *testing.T) {
	isolate(t)
	server := newFeedServer(t, 40)

	out, err := execute(t, "--source", server.indexURL(), "search")
	if err != nil {
		t.Fatalf("search failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1-15") || !strings.Contains(out, "more with --pages") {
		t.Errorf("expected one page with more available:\n%s", out)
	}
	if strings.Contains(out, "Demo.15 ") {
		t.Errorf("only the first page should be listed:\n%s", out)
	}
}

func TestSearchCommandFailure(t *testing.T) {
	isolate(t)
	server := newFeedServer(t, 5)

	_, err := execute(t, "--source", server.indexURL(), "search", "broken")
	if err == nil {
		t.Fatal("expected an error from a failing feed")
	}
	if !strings.Contains(err.Error(), "The remote server returned status code: 404.") {
		t.Errorf("error = %q", err)
	}
}

func TestSourcesCommands(t *testing.T) {
	isolate(t)
	private := "https://feed.example.com/v3/index.json"
	myget := "https://www.myget.org/F/demo/api/v2"

	out, err := execute(t, "sources", "add", private, "--username", "me", "--password", "secret")
	if err != nil {
		t.Fatalf("sources add failed: %v", err)
	}
	if !strings.Contains(out, "Added "+private) {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := execute(t, "sources", "use", myget); err != nil {
		t.Fatalf("sources use failed: %v", err)
	}

	out, err = execute(t, "sources", "list")
	if err != nil {
		t.Fatalf("sources list failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 sources, got:\n%s", out)
	}
	if !strings.Contains(lines[0], "nuget.org") {
		t.Errorf("default source should come first: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "* "+myget) || !strings.Contains(lines[1], "v2") {
		t.Errorf("active v2 source should be marked second: %q", lines[1])
	}
	if !strings.Contains(lines[2], private) || !strings.Contains(lines[2], "(authenticated)") {
		t.Errorf("private source should carry its credentials: %q", lines[2])
	}

	if _, err := execute(t, "sources", "add", "ftp://packages.example.com"); !errors.Is(err, core.ErrInvalidSource) {
		t.Errorf("sources add error = %v, want ErrInvalidSource", err)
	}
}

func TestSourcesUseFixed(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--source", "https://feed.example.com/v3/index.json", "sources", "use", "https://www.myget.org/F/demo/api/v2")
	if err == nil {
		t.Fatal("changing the source should fail while --source pins it")
	}
}

func TestVersionsCommand(t *testing.T) {
	isolate(t)
	server := newFeedServer(t, 0)

	out, err := execute(t, "--source", server.indexURL(), "versions", "Demo.Lib")
	if err != nil {
		t.Fatalf("versions failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := []string{"2.0.0-beta  2024-03-04", "1.5.0  2024-02-03", "1.0.0  2024-01-02"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), out)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}

	out, err = execute(t, "--source", server.indexURL(), "--prerelease=false", "versions", "Demo.Lib")
	if err != nil {
		t.Fatalf("versions failed: %v", err)
	}
	if strings.Contains(out, "beta") {
		t.Errorf("prerelease versions should be hidden:\n%s", out)
	}
}

func TestDownloadCommand(t *testing.T) {
	isolate(t)
	server := newFeedServer(t, 0)

	tests := []struct {
		name string
		args []string
	}{
		{"id and version", []string{"download", "Demo.Lib", "1.0.0"}},
		{"purl", []string{"download", "pkg:nuget/Demo.Lib@1.0.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			args := append([]string{"--source", server.indexURL()}, tt.args...)
			args = append(args, "--dir", dir)

			out, err := execute(t, args...)
			if err != nil {
				t.Fatalf("download failed: %v\n%s", err, out)
			}

			path := filepath.Join(dir, "demo.lib.1.0.0.nupkg")
			if !strings.Contains(out, "Saved Demo.Lib 1.0.0 to "+path) {
				t.Errorf("unexpected output: %s", out)
			}
			data, err := os.ReadFile(path)
			if err != nil || string(data) != nupkgBody {
				t.Errorf("saved content = %q, %v", data, err)
			}
		})
	}
}

func TestDownloadCommandMissingVersion(t *testing.T) {
	isolate(t)
	server := newFeedServer(t, 0)

	_, err := execute(t, "--source", server.indexURL(), "download", "Demo.Lib", "9.9.9", "--dir", t.TempDir())
	if err == nil {
		t.Fatal("expected an error for a version the feed does not have")
	}
}
