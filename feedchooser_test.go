package feedchooser_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-pkgs/feedchooser"
	_ "github.com/git-pkgs/feedchooser/all"
)

func TestSupportedKinds(t *testing.T) {
	kinds := feedchooser.SupportedKinds()

	expected := []feedchooser.Kind{feedchooser.KindLocal, feedchooser.KindV2, feedchooser.KindV3}
	if len(kinds) != len(expected) {
		t.Fatalf("expected %d kinds, got %d: %v", len(expected), len(kinds), kinds)
	}
	for i, k := range expected {
		if kinds[i] != k {
			t.Errorf("expected kind %q at position %d, got %q", k, i, kinds[i])
		}
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		url      string
		wantKind feedchooser.Kind
		wantErr  error
	}{
		{"https://api.nuget.org/v3/index.json", feedchooser.KindV3, nil},
		{"https://www.myget.org/F/demo/api/v2", feedchooser.KindV2, nil},
		{t.TempDir(), feedchooser.KindLocal, nil},
		{"ftp://packages.example.com", "", feedchooser.ErrInvalidSource},
		{"", "", feedchooser.ErrInvalidSource},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			feed, err := feedchooser.Open(tt.url, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Open(%q) error = %v, want %v", tt.url, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open(%q) failed: %v", tt.url, err)
			}
			if feed.Kind() != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", feed.Kind(), tt.wantKind)
			}
		})
	}
}

func TestIntegration(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v3/index.json":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"version": "3.0.0",
				"resources": []map[string]string{
					{"@id": server.URL + "/query", "@type": "SearchQueryService/3.5.0"},
					{"@id": server.URL + "/flat/", "@type": "PackageBaseAddress/3.0.0"},
				},
			})
		case "/query":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"totalHits": 1,
				"data": []map[string]any{{
					"id":             "Newtonsoft.Json",
					"version":        "13.0.3",
					"description":    "Json.NET is a popular high-performance JSON framework for .NET",
					"authors":        []string{"James Newton-King"},
					"totalDownloads": 5000000000,
				}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := feedchooser.DefaultClient().WithUserAgent("feedchooser-test")
	feed, err := feedchooser.Open(server.URL+"/v3/index.json", client)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	results, err := feed.Search(context.Background(), feedchooser.SearchRequest{Term: "json", Take: 15})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "Newtonsoft.Json" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if got := feedchooser.FormatDownloads(results[0].DownloadCount); got != "5.0B" {
		t.Errorf("FormatDownloads = %q, want 5.0B", got)
	}
	if got := results[0].PURL(); got != "pkg:nuget/Newtonsoft.Json@13.0.3" {
		t.Errorf("PURL = %q", got)
	}

	dl, ok := feed.(feedchooser.DownloadURLResolver)
	if !ok {
		t.Fatal("v3 feed should resolve download URLs")
	}
	url, err := dl.DownloadURL(context.Background(), "Newtonsoft.Json", "13.0.3")
	if err != nil {
		t.Fatalf("DownloadURL failed: %v", err)
	}
	if want := server.URL + "/flat/newtonsoft.json/13.0.3/newtonsoft.json.13.0.3.nupkg"; url != want {
		t.Errorf("DownloadURL = %q, want %q", url, want)
	}
}

func TestParsePURL(t *testing.T) {
	if _, err := feedchooser.ParsePURL("pkg:nuget/Newtonsoft.Json@13.0.3"); err != nil {
		t.Fatalf("ParsePURL failed: %v", err)
	}

	p, err := feedchooser.ParseNuGetPURL("pkg:nuget/Newtonsoft.Json@13.0.3")
	if err != nil {
		t.Fatalf("ParseNuGetPURL failed: %v", err)
	}
	if p.ID() != "Newtonsoft.Json" || p.Version != "13.0.3" {
		t.Errorf("parsed %q@%q", p.ID(), p.Version)
	}

	if _, err := feedchooser.ParseNuGetPURL("pkg:npm/lodash@4.17.21"); err == nil {
		t.Error("expected an error for a non-nuget PURL")
	}
}

func TestConstants(t *testing.T) {
	if feedchooser.StatusYanked != "yanked" {
		t.Errorf("StatusYanked constant mismatch")
	}
	if feedchooser.KindV3 != "v3" {
		t.Errorf("KindV3 constant mismatch")
	}
}
