// Package query pages through feed search results and caches the pages per query.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/git-pkgs/feedchooser/internal/core"
)

// DefaultPageSize is the number of results requested per page.
const DefaultPageSize = 15

var (
	// ErrCanceled is returned when a page fetch was canceled.
	ErrCanceled = errors.New("query canceled")

	// ErrFetchInProgress is returned when LoadMore is called while a page is being fetched.
	ErrFetchInProgress = errors.New("a page fetch is already in progress")
)

// State is the lifecycle stage of a Context.
type State int

const (
	Idle State = iota
	Fetching
	PageReady
	Exhausted
	Canceled
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case PageReady:
		return "page-ready"
	case Exhausted:
		return "exhausted"
	case Canceled:
		return "canceled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Context is one search against one feed, read a page at a time.
// Its parameters are fixed; a different term or feed needs a new Context.
type Context struct {
	feed       core.Feed
	term       string
	prerelease bool
	pageSize   int
	acc        *Accumulator

	mu      sync.Mutex
	offset  int
	hasMore bool
	state   State
}

// NewContext creates a query. Pages are read from and written to acc, so a
// Context over an accumulator that already holds pages serves them without a feed call.
func NewContext(feed core.Feed, term string, prerelease bool, pageSize int, acc *Accumulator) *Context {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if acc == nil {
		acc = &Accumulator{}
	}
	return &Context{
		feed:       feed,
		term:       strings.TrimSpace(term),
		prerelease: prerelease,
		pageSize:   pageSize,
		acc:        acc,
		hasMore:    true,
	}
}

// LoadMore returns the next page. It returns nil, nil once the results are exhausted.
//
// A canceled fetch returns an error wrapping ErrCanceled; any other failure is
// returned as is. Neither moves the offset, so the same page can be retried.
func (c *Context) LoadMore(ctx context.Context) ([]core.SearchResult, error) {
	c.mu.Lock()
	if c.state == Fetching {
		c.mu.Unlock()
		return nil, ErrFetchInProgress
	}
	if !c.hasMore {
		c.mu.Unlock()
		return nil, nil
	}

	index := c.offset / c.pageSize
	if page, ok := c.acc.Page(index); ok {
		c.advance(page)
		c.mu.Unlock()
		return page, nil
	}

	c.state = Fetching
	req := core.SearchRequest{
		Term:              c.term,
		Skip:              c.offset,
		Take:              c.pageSize,
		IncludePrerelease: c.prerelease,
	}
	c.mu.Unlock()

	page, err := c.feed.Search(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil || isCancellation(err) {
		c.state = Canceled
		if err == nil {
			err = ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	if err != nil {
		c.state = Failed
		return nil, err
	}

	if page == nil {
		page = []core.SearchResult{}
	}
	c.acc.Store(index, page)
	c.advance(page)
	return page, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// advance moves past page. A short page means there is nothing more to read.
// Must hold c.mu.
func (c *Context) advance(page []core.SearchResult) {
	c.offset += c.pageSize
	c.hasMore = len(page) == c.pageSize
	if c.hasMore {
		c.state = PageReady
	} else {
		c.state = Exhausted
	}
}

// HasMore reports whether another page may exist.
func (c *Context) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Offset returns the number of results requested so far.
func (c *Context) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) PageSize() int    { return c.pageSize }
func (c *Context) Term() string     { return c.term }
func (c *Context) Prerelease() bool { return c.prerelease }
func (c *Context) Feed() core.Feed  { return c.feed }
