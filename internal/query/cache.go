package query

import (
	"strings"
	"sync"

	"github.com/git-pkgs/feedchooser/internal/core"
)

// Key identifies one query: the feed, the trimmed search term and the prerelease flag.
type Key struct {
	Source     string
	Term       string
	Prerelease bool
}

// NewKey builds the cache key for a query against src.
func NewKey(src core.Source, term string, prerelease bool) Key {
	return Key{Source: src.Key(), Term: strings.TrimSpace(term), Prerelease: prerelease}
}

// Accumulator holds the pages fetched so far for one key.
// Fetch goroutines write to it, so it is safe for concurrent use.
type Accumulator struct {
	mu    sync.RWMutex
	pages [][]core.SearchResult
}

// Page returns page i if it has been fetched.
func (a *Accumulator) Page(i int) ([]core.SearchResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= len(a.pages) || a.pages[i] == nil {
		return nil, false
	}
	return a.pages[i], true
}

// Store records page i. Pages can only be stored in order, so a gap is never left.
func (a *Accumulator) Store(i int, page []core.SearchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if page == nil {
		page = []core.SearchResult{}
	}
	switch {
	case i < len(a.pages):
		a.pages[i] = page
	case i == len(a.pages):
		a.pages = append(a.pages, page)
	}
}

// Pages returns the number of fetched pages.
func (a *Accumulator) Pages() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pages)
}

// Items returns every fetched result in page order.
func (a *Accumulator) Items() []core.SearchResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var items []core.SearchResult
	for _, p := range a.pages {
		items = append(items, p...)
	}
	return items
}

// Cache maps query keys to their accumulators. Entries are never evicted.
// It is not safe for concurrent use; a single owner goroutine must hold it.
type Cache struct {
	entries map[Key]*Accumulator
}

func NewCache() *Cache {
	return &Cache{entries: make(map[Key]*Accumulator)}
}

// GetOrCreate returns the accumulator for key, creating an empty one on first use.
func (c *Cache) GetOrCreate(key Key) *Accumulator {
	acc, ok := c.entries[key]
	if !ok {
		acc = &Accumulator{}
		c.entries[key] = acc
	}
	return acc
}

func (c *Cache) Len() int {
	return len(c.entries)
}
