package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func BenchmarkClient_GetJSON(b *testing.B) {
	response := map[string]any{
		"totalHits": 1,
		"data": []map[string]any{
			{
				"id":             "Newtonsoft.Json",
				"version":        "13.0.3",
				"description":    "Json.NET is a popular high-performance JSON framework for .NET",
				"totalDownloads": 5000000000,
				"authors":        []string{"James Newton-King"},
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := DefaultClient()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var result map[string]any
		_ = client.GetJSON(ctx, server.URL, &result)
	}
}

func BenchmarkClient_GetBody(b *testing.B) {
	body := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title type="text">Search</title></feed>
`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := DefaultClient()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = client.GetBody(ctx, server.URL)
	}
}

func BenchmarkDefaultClient(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultClient()
	}
}
