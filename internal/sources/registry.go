// Package sources keeps the most-recently-used list of feed sources.
package sources

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/git-pkgs/feedchooser/internal/core"
	"github.com/git-pkgs/feedchooser/internal/logging"
)

const (
	// DefaultBound is the number of sources remembered.
	DefaultBound = 5

	// DefaultPackageSource is the nuget.org v3 service index.
	DefaultPackageSource = "https://api.nuget.org/v3/index.json"

	// DefaultPublishSource is the nuget.org gallery used for pushes.
	DefaultPublishSource = "https://www.nuget.org"
)

var (
	// ErrFixedSource is returned when changing the active source of a fixed registry.
	ErrFixedSource = errors.New("cannot set active package source when fixed package source is used")

	// ErrEmptySource is returned when a source has no URL.
	ErrEmptySource = errors.New("package source has no URL")
)

// Settings persists a source list and its active entry.
type Settings interface {
	Sources() ([]string, error)
	SetSources(urls []string) error
	Active() (string, error)
	SetActive(url string) error
}

// CredentialProvider attaches stored credentials to a source.
type CredentialProvider interface {
	Apply(src core.Source) core.Source
}

// Registry is a bounded, most-recently-used list of sources with one active entry.
// The default source, once present, always sits at index 0.
type Registry struct {
	mu         sync.Mutex
	settings   Settings
	creds      CredentialProvider
	logger     *slog.Logger
	bound      int
	def        core.Source
	fixed      *core.Source
	migrations map[string]string

	sources []core.Source
	active  core.Source
	closed  bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefault sets the source that is always kept at the front of the list.
func WithDefault(src core.Source) Option {
	return func(r *Registry) {
		r.def = src
	}
}

// WithBound sets how many sources are remembered.
func WithBound(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.bound = n
		}
	}
}

// WithFixed pins the active source. SetActive then fails with ErrFixedSource.
func WithFixed(src core.Source) Option {
	return func(r *Registry) {
		r.fixed = &src
	}
}

// WithMigrations rewrites deprecated URLs, compared case-insensitively, when loading.
func WithMigrations(m map[string]string) Option {
	return func(r *Registry) {
		for from, to := range m {
			r.migrations[strings.ToLower(from)] = to
		}
	}
}

// WithCredentials attaches stored credentials to every source the registry hands out.
func WithCredentials(p CredentialProvider) Option {
	return func(r *Registry) {
		r.creds = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// PackageSourceOptions configures a registry of feeds to browse.
func PackageSourceOptions() []Option {
	return []Option{
		WithDefault(core.Source{Name: "nuget.org", URL: DefaultPackageSource}),
		WithMigrations(map[string]string{
			"https://www.nuget.org/api/v2/": DefaultPackageSource,
			"https://nuget.org/api/v2/":     DefaultPackageSource,
		}),
	}
}

// PublishSourceOptions configures a registry of feeds to push to.
func PublishSourceOptions() []Option {
	return []Option{
		WithDefault(core.Source{Name: "nuget.org", URL: DefaultPublishSource}),
		WithMigrations(map[string]string{
			"https://nuget.org": DefaultPublishSource,
		}),
	}
}

// New loads a registry from settings. A nil settings keeps the list in memory only.
func New(settings Settings, opts ...Option) (*Registry, error) {
	r := &Registry{
		settings:   settings,
		logger:     logging.NullLogger(),
		bound:      DefaultBound,
		def:        core.Source{Name: "nuget.org", URL: DefaultPackageSource},
		migrations: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.def.Name == "" {
		r.def.Name = r.def.URL
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	var saved []string
	var active string
	if r.settings != nil {
		var err error
		if saved, err = r.settings.Sources(); err != nil {
			return fmt.Errorf("loading sources: %w", err)
		}
		if active, err = r.settings.Active(); err != nil {
			return fmt.Errorf("loading active source: %w", err)
		}
	}

	for i := len(saved) - 1; i >= 0; i-- {
		if u := r.migrate(saved[i]); u != "" {
			r.insert(r.source(u))
		}
	}

	if u := r.migrate(active); u != "" {
		src := r.source(u)
		r.insert(src)
		r.active = src
	}

	if r.indexOf(r.def) == -1 {
		r.sources = append([]core.Source{r.source(r.def.URL)}, r.sources...)
	}

	if r.active.IsZero() {
		r.active = r.sources[0]
	}

	r.logger.Debug("loaded package sources", "count", len(r.sources), "active", r.active.URL)
	return nil
}

func (r *Registry) migrate(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if to, ok := r.migrations[strings.ToLower(u)]; ok {
		r.logger.Info("migrated package source", "from", u, "to", to)
		return to
	}
	return u
}

// source builds a Source for a URL, reusing the default's name and any stored credentials.
func (r *Registry) source(u string) core.Source {
	src := core.NewSource(u)
	if src.Equal(r.def) {
		src.Name = r.def.Name
	}
	return r.withCredentials(src)
}

func (r *Registry) withCredentials(src core.Source) core.Source {
	if r.creds == nil || src.Credentials != nil {
		return src
	}
	return r.creds.Apply(src)
}

func (r *Registry) indexOf(src core.Source) int {
	for i, s := range r.sources {
		if s.Equal(src) {
			return i
		}
	}
	return -1
}

// insert moves src to the front, trims the list to the bound and keeps the default first.
func (r *Registry) insert(src core.Source) {
	if i := r.indexOf(src); i != -1 {
		r.sources = append(r.sources[:i], r.sources[i+1:]...)
	}
	r.sources = append([]core.Source{src}, r.sources...)

	if len(r.sources) > r.bound {
		for i := len(r.sources) - 1; i >= 0; i-- {
			if !r.sources[i].Equal(r.def) {
				r.sources = append(r.sources[:i], r.sources[i+1:]...)
				break
			}
		}
	}

	if i := r.indexOf(r.def); i > 0 {
		def := r.sources[i]
		r.sources = append(r.sources[:i], r.sources[i+1:]...)
		r.sources = append([]core.Source{def}, r.sources...)
	}
}

// Sources returns the remembered sources, most recently used first after the default.
func (r *Registry) Sources() []core.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Source(nil), r.sources...)
}

// NotifySourceUsed records that src was used.
func (r *Registry) NotifySourceUsed(src core.Source) error {
	if strings.TrimSpace(src.URL) == "" {
		return ErrEmptySource
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	src.URL = strings.TrimSpace(src.URL)
	if src.Name == "" {
		src.Name = src.URL
	}
	r.insert(r.withCredentials(src))
	return nil
}

// Active returns the source searches go to.
func (r *Registry) Active() core.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fixed != nil {
		return *r.fixed
	}
	return r.active
}

// SetActive changes the active source.
func (r *Registry) SetActive(src core.Source) error {
	if r.fixed != nil {
		r.logger.Error("attempted to change a fixed package source", "source", src.URL, "fixed", r.fixed.URL)
		return ErrFixedSource
	}
	if strings.TrimSpace(src.URL) == "" {
		return ErrEmptySource
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(src); i != -1 {
		src = r.sources[i]
	}
	r.active = r.withCredentials(src)
	return nil
}

// Default returns the source pinned at the front of the list.
func (r *Registry) Default() core.Source {
	return r.def
}

// IsFixed reports whether the active source is pinned.
func (r *Registry) IsFixed() bool {
	return r.fixed != nil
}

// Close persists the list and the active source.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.settings == nil {
		return nil
	}

	urls := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		urls = append(urls, s.URL)
	}
	if err := r.settings.SetSources(urls); err != nil {
		return fmt.Errorf("saving sources: %w", err)
	}
	if err := r.settings.SetActive(r.active.URL); err != nil {
		return fmt.Errorf("saving active source: %w", err)
	}
	r.logger.Debug("saved package sources", "count", len(urls))
	return nil
}
