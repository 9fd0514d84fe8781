// Package chooser drives a package search against the active source of a
// registry and reports changes to subscribers.
//
// Every operation runs on one owner goroutine. Feed calls run on their own
// goroutines and post their results back, so a result that arrives after the
// query changed is recognised by its generation and dropped.
package chooser

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/git-pkgs/feedchooser/internal/core"
	"github.com/git-pkgs/feedchooser/internal/logging"
	"github.com/git-pkgs/feedchooser/internal/query"
	"github.com/git-pkgs/feedchooser/internal/sources"
)

var (
	// ErrClosed is returned by operations on a closed coordinator.
	ErrClosed = errors.New("chooser is closed")

	// ErrOutOfRange is returned by Select for an index outside the displayed items.
	ErrOutOfRange = errors.New("selection out of range")
)

// FeedOpener turns a source into a feed. core.Open with a shared client is the usual choice.
type FeedOpener func(core.Source) (core.Feed, error)

// Coordinator owns the displayed result list for one registry.
type Coordinator struct {
	reg      *sources.Registry
	open     FeedOpener
	logger   *slog.Logger
	pageSize int
	cache    *query.Cache

	tasks   chan func()
	done    chan struct{}
	stopped bool

	// Owned by the loop.
	feed        core.Feed
	query       *query.Context
	generation  uint64
	cancel      context.CancelFunc
	items       []core.SearchResult
	selected    int
	status      string
	hasError    bool
	loading     bool
	term        string
	typing      string
	prerelease  bool
	handlers    map[int]func(Event)
	nextHandler int
	waiters     []chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPageSize sets the number of results per page.
func WithPageSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithPrerelease sets the initial prerelease flag.
func WithPrerelease(v bool) Option {
	return func(c *Coordinator) {
		c.prerelease = v
	}
}

// WithCache shares a page cache between coordinators.
func WithCache(cache *query.Cache) Option {
	return func(c *Coordinator) {
		if cache != nil {
			c.cache = cache
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a coordinator and starts its loop. Nothing is fetched until Load is called.
func New(reg *sources.Registry, open FeedOpener, opts ...Option) *Coordinator {
	c := &Coordinator{
		reg:      reg,
		open:     open,
		logger:   logging.NullLogger(),
		pageSize: query.DefaultPageSize,
		cache:    query.NewCache(),
		tasks:    make(chan func()),
		done:     make(chan struct{}),
		selected: -1,
		handlers: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()
	return c
}

// Load starts the query over with the current parameters.
func (c *Coordinator) Load() error {
	return c.do(c.restart)
}

// Search runs a query for term. Searching for the current term again does nothing.
func (c *Coordinator) Search(term string) error {
	term = strings.TrimSpace(term)
	return c.do(func() {
		c.typing = term
		if term == c.term {
			return
		}
		c.term = term
		c.restart()
	})
}

// ClearSearch empties the term and starts over.
func (c *Coordinator) ClearSearch() error {
	return c.do(func() {
		c.term = ""
		c.typing = ""
		c.restart()
	})
}

// SetTypingSearch records text being edited without searching for it.
func (c *Coordinator) SetTypingSearch(text string) error {
	return c.do(func() {
		c.typing = text
	})
}

// ChangeSource makes rawURL the active source and starts over.
func (c *Coordinator) ChangeSource(rawURL string) error {
	if c.reg.IsFixed() {
		c.logger.Error("cannot change a fixed package source", "requested", rawURL)
		return sources.ErrFixedSource
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return sources.ErrEmptySource
	}

	var err error
	doErr := c.do(func() {
		src := core.NewSource(rawURL)
		if !src.Equal(c.reg.Active()) {
			if err = c.reg.NotifySourceUsed(src); err != nil {
				return
			}
			if err = c.reg.SetActive(src); err != nil {
				return
			}
			c.cancelFetch()
			c.feed = nil
			c.logger.Info("package source changed", "source", rawURL)
			c.emit(SourceChanged)
		}
		c.restart()
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// SetPrerelease changes whether prerelease versions are included.
func (c *Coordinator) SetPrerelease(v bool) error {
	return c.do(func() {
		if c.prerelease == v {
			return
		}
		c.prerelease = v
		c.restart()
	})
}

// LoadMore fetches the next page and appends it to the displayed items.
func (c *Coordinator) LoadMore() error {
	return c.do(func() {
		if c.loading || c.query == nil || !c.query.HasMore() {
			return
		}
		c.startFetch()
	})
}

// Cancel abandons the fetch in flight. Items already displayed stay.
func (c *Coordinator) Cancel() error {
	return c.do(func() {
		c.cancelFetch()
		c.generation++
		c.setStatus("", false)
	})
}

// Select marks item i as selected.
func (c *Coordinator) Select(i int) error {
	var err error
	doErr := c.do(func() {
		if i < 0 || i >= len(c.items) {
			c.logger.Error("selection out of range", "index", i, "items", len(c.items))
			err = ErrOutOfRange
			return
		}
		if c.selected != i {
			c.selected = i
			c.emit(SelectionChanged)
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Snapshot returns the current state. A closed coordinator returns the zero State.
func (c *Coordinator) Snapshot() State {
	var s State
	_ = c.do(func() { s = c.snapshot() })
	return s
}

// WaitIdle blocks until no fetch is in flight or ctx is done.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	var wait chan struct{}
	err := c.do(func() {
		if c.loading {
			wait = make(chan struct{})
			c.waiters = append(c.waiters, wait)
		}
	})
	if err != nil || wait == nil {
		return err
	}

	select {
	case <-wait:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any fetch, stops the loop and persists the registry.
func (c *Coordinator) Close() error {
	err := c.do(func() {
		c.cancelFetch()
		c.generation++
		c.handlers = map[int]func(Event){}
		c.stopped = true
	})
	if err != nil {
		return err
	}
	return c.reg.Close()
}
