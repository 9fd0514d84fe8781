// Package config loads feedchooser settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/git-pkgs/feedchooser/internal/logging"
	"github.com/git-pkgs/feedchooser/internal/query"
	"github.com/git-pkgs/feedchooser/internal/sources"
)

// EnvPrefix prefixes every environment override, e.g. FEEDCHOOSER_FEED_PAGE_SIZE.
const EnvPrefix = "FEEDCHOOSER"

type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Settings SettingsConfig `mapstructure:"settings"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  logging.Config `mapstructure:"logging"`
	UI       UIConfig       `mapstructure:"ui"`
}

type FeedConfig struct {
	DefaultSource string        `mapstructure:"default_source"`
	PageSize      int           `mapstructure:"page_size"`
	MaxSources    int           `mapstructure:"max_sources"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	UserAgent     string        `mapstructure:"user_agent"`
}

type SettingsConfig struct {
	// Path is the bbolt file holding sources, credentials and preferences.
	// Empty keeps everything in memory.
	Path string `mapstructure:"path"`
}

type DownloadConfig struct {
	Dir string `mapstructure:"dir"`
}

// UIConfig holds the defaults for preferences the settings store has not recorded yet.
type UIConfig struct {
	ShowPrerelease bool `mapstructure:"show_prerelease"`
	AutoLoad       bool `mapstructure:"auto_load"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			DefaultSource: sources.DefaultPackageSource,
			PageSize:      query.DefaultPageSize,
			MaxSources:    sources.DefaultBound,
			Timeout:       30 * time.Second,
			MaxRetries:    5,
			UserAgent:     "feedchooser",
		},
		Settings: SettingsConfig{
			Path: "~/.config/feedchooser/settings.db",
		},
		Download: DownloadConfig{
			Dir: ".",
		},
		Logging: logging.Config{
			Level: "WARN",
		},
		UI: UIConfig{
			ShowPrerelease: true,
			AutoLoad:       true,
		},
	}
}

// DefaultPath returns ~/.config/feedchooser/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "feedchooser", "config.toml"), nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("feed.default_source", cfg.Feed.DefaultSource)
	v.SetDefault("feed.page_size", cfg.Feed.PageSize)
	v.SetDefault("feed.max_sources", cfg.Feed.MaxSources)
	v.SetDefault("feed.timeout", cfg.Feed.Timeout)
	v.SetDefault("feed.max_retries", cfg.Feed.MaxRetries)
	v.SetDefault("feed.user_agent", cfg.Feed.UserAgent)
	v.SetDefault("settings.path", cfg.Settings.Path)
	v.SetDefault("download.dir", cfg.Download.Dir)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("ui.show_prerelease", cfg.UI.ShowPrerelease)
	v.SetDefault("ui.auto_load", cfg.UI.AutoLoad)
}

// Load reads configPath, or the default location when it is empty. A missing
// file at the default location is not an error; a missing explicit file is.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if configPath != "" {
		path, err := logging.ExpandHome(configPath)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Dir(path))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := expandPaths(&cfg); err != nil {
		return nil, err
	}
	if cfg.Feed.PageSize <= 0 {
		cfg.Feed.PageSize = query.DefaultPageSize
	}
	if cfg.Feed.MaxSources <= 0 {
		cfg.Feed.MaxSources = sources.DefaultBound
	}
	return &cfg, nil
}

func expandPaths(cfg *Config) error {
	for _, p := range []*string{&cfg.Settings.Path, &cfg.Download.Dir, &cfg.Logging.File} {
		expanded, err := logging.ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// fileConfig is the on-disk layout written by WriteDefault. Durations are
// strings so the file stays readable.
type fileConfig struct {
	Feed struct {
		DefaultSource string `toml:"default_source" comment:"Feed searched when no source has been used yet"`
		PageSize      int    `toml:"page_size" comment:"Results per page"`
		MaxSources    int    `toml:"max_sources" comment:"Number of recently used sources to remember"`
		Timeout       string `toml:"timeout" comment:"HTTP timeout per request"`
		MaxRetries    int    `toml:"max_retries" comment:"Retries for 429 and 5xx responses"`
		UserAgent     string `toml:"user_agent"`
	} `toml:"feed"`
	Settings struct {
		Path string `toml:"path" comment:"Settings database; empty keeps settings in memory"`
	} `toml:"settings"`
	Download struct {
		Dir string `toml:"dir" comment:"Where downloaded packages are saved"`
	} `toml:"download"`
	Logging logging.Config `toml:"logging"`
	UI      struct {
		ShowPrerelease bool `toml:"show_prerelease"`
		AutoLoad       bool `toml:"auto_load" comment:"Search as soon as the chooser opens"`
	} `toml:"ui"`
}

func toFile(cfg *Config) fileConfig {
	var f fileConfig
	f.Feed.DefaultSource = cfg.Feed.DefaultSource
	f.Feed.PageSize = cfg.Feed.PageSize
	f.Feed.MaxSources = cfg.Feed.MaxSources
	f.Feed.Timeout = cfg.Feed.Timeout.String()
	f.Feed.MaxRetries = cfg.Feed.MaxRetries
	f.Feed.UserAgent = cfg.Feed.UserAgent
	f.Settings.Path = cfg.Settings.Path
	f.Download.Dir = cfg.Download.Dir
	f.Logging = cfg.Logging
	f.UI.ShowPrerelease = cfg.UI.ShowPrerelease
	f.UI.AutoLoad = cfg.UI.AutoLoad
	return f
}

// Marshal renders cfg as commented TOML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := toml.Marshal(toFile(cfg))
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the built-in configuration to path. An existing file is left alone.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
