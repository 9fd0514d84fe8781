package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/feedchooser/internal/sources"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, sources.DefaultPackageSource, cfg.Feed.DefaultSource)
	assert.Equal(t, 15, cfg.Feed.PageSize)
	assert.Equal(t, 5, cfg.Feed.MaxSources)
	assert.Equal(t, 30*time.Second, cfg.Feed.Timeout)
	assert.Equal(t, "feedchooser", cfg.Feed.UserAgent)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.True(t, cfg.UI.ShowPrerelease)
	assert.True(t, cfg.UI.AutoLoad)
	assert.False(t, strings.HasPrefix(cfg.Settings.Path, "~"), "home is expanded")
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[feed]
default_source = "https://feed.example.com/v3/index.json"
page_size = 25
timeout = "5s"

[logging]
level = "debug"

[ui]
show_prerelease = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://feed.example.com/v3/index.json", cfg.Feed.DefaultSource)
	assert.Equal(t, 25, cfg.Feed.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Feed.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.UI.ShowPrerelease)
	assert.True(t, cfg.UI.AutoLoad)
	assert.Equal(t, 5, cfg.Feed.MaxRetries)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FEEDCHOOSER_FEED_PAGE_SIZE", "40")
	t.Setenv("FEEDCHOOSER_DOWNLOAD_DIR", "/tmp/pkgs")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Feed.PageSize)
	assert.Equal(t, "/tmp/pkgs", cfg.Download.Dir)
}

func TestLoad_InvalidPageSizeFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[feed]\npage_size = 0\nmax_sources = -1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Feed.PageSize)
	assert.Equal(t, 5, cfg.Feed.MaxSources)
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "[feed]")
	assert.Contains(t, text, "# Results per page")
	assert.Contains(t, text, "30s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Feed.Timeout)
	assert.Equal(t, sources.DefaultPackageSource, cfg.Feed.DefaultSource)

	assert.Error(t, WriteDefault(path), "existing file is not overwritten")
}
