package chooser

import (
	"context"
	"errors"
	"fmt"

	"github.com/git-pkgs/feedchooser/client"
	"github.com/git-pkgs/feedchooser/internal/core"
	"github.com/git-pkgs/feedchooser/internal/query"
)

// run executes tasks until one of them stops the coordinator.
func (c *Coordinator) run() {
	defer close(c.done)
	for task := range c.tasks {
		task()
		if c.stopped {
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (c *Coordinator) do(fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case c.tasks <- task:
	case <-c.done:
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-c.done:
		// The loop may have run the task as its last one.
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// post queues fn on the loop without waiting. It is dropped once the loop has stopped.
func (c *Coordinator) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.done:
	}
}

// restart cancels whatever is in flight and starts the query over with the
// current parameters. Loop only.
func (c *Coordinator) restart() {
	c.cancelFetch()
	c.generation++

	hadItems := len(c.items) > 0
	hadSelection := c.selected != -1
	c.items = nil
	c.selected = -1
	if hadItems {
		c.emit(ItemsChanged)
	}
	if hadSelection {
		c.emit(SelectionChanged)
	}

	feed, notice, err := c.currentFeed()
	if err != nil {
		c.query = nil
		c.setStatus(failureText(err), true)
		return
	}

	key := query.NewKey(feed.Source(), c.term, c.prerelease)
	c.query = query.NewContext(feed, c.term, c.prerelease, c.pageSize, c.cache.GetOrCreate(key))
	c.setStatus(notice, false)

	c.logger.Debug("query restarted",
		"source", feed.Source().URL,
		"term", c.term,
		"prerelease", c.prerelease,
		"generation", c.generation,
	)
	c.startFetch()
}

// currentFeed returns the open feed for the active source, opening it if
// needed. A source that cannot be opened falls back to the default source with
// a notice. Loop only.
func (c *Coordinator) currentFeed() (core.Feed, string, error) {
	active := c.reg.Active()
	if c.feed != nil && c.feed.Source().Equal(active) {
		return c.feed, "", nil
	}
	c.feed = nil

	feed, err := c.open(active)
	if err == nil {
		c.feed = feed
		return feed, "", nil
	}

	def := c.reg.Default()
	if active.Equal(def) || c.reg.IsFixed() {
		return nil, "", err
	}

	c.logger.Warn("package source is not valid, using the default", "source", active.URL, "error", err)
	feed, defErr := c.open(def)
	if defErr != nil {
		return nil, "", defErr
	}
	if setErr := c.reg.SetActive(def); setErr == nil {
		c.emit(SourceChanged)
	}
	c.feed = feed
	notice := fmt.Sprintf("The package source %q is not valid. Showing %s instead.", active.URL, def.Name)
	return feed, notice, nil
}

// startFetch loads the next page of the current query in the background. Loop only.
func (c *Coordinator) startFetch() {
	q := c.query
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setLoading(true)

	go func() {
		page, err := q.LoadMore(ctx)
		c.post(func() { c.complete(gen, page, err) })
	}()
}

// complete applies a finished fetch if it still belongs to the current generation. Loop only.
func (c *Coordinator) complete(gen uint64, page []core.SearchResult, err error) {
	if gen != c.generation {
		c.logger.Debug("discarded stale page", "generation", gen, "current", c.generation)
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.setLoading(false)

	switch {
	case err == nil:
		if len(page) > 0 {
			c.items = append(c.items, page...)
			c.emit(ItemsChanged)
			if c.selected == -1 {
				c.selected = 0
				c.emit(SelectionChanged)
			}
		}
		c.logger.Debug("page loaded", "results", len(page), "total", len(c.items))
	case errors.Is(err, query.ErrCanceled), errors.Is(err, query.ErrFetchInProgress):
		// Nothing to report.
	default:
		c.logger.Warn("search failed", "source", c.reg.Active().URL, "error", err)
		c.setStatus(failureText(err), true)
		if len(c.items) > 0 {
			c.items = nil
			c.selected = -1
			c.emit(ItemsChanged)
			c.emit(SelectionChanged)
		}
	}

	c.emit(LoadCompleted)
}

// cancelFetch stops the in-flight fetch, if any. Loop only.
func (c *Coordinator) cancelFetch() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.setLoading(false)
}

func (c *Coordinator) setLoading(v bool) {
	if c.loading == v {
		return
	}
	c.loading = v
	c.emit(LoadingChanged)
	if !v {
		for _, w := range c.waiters {
			close(w)
		}
		c.waiters = nil
	}
}

func (c *Coordinator) setStatus(text string, isErr bool) {
	if c.status == text && c.hasError == isErr {
		return
	}
	c.status = text
	c.hasError = isErr
	c.emit(StatusChanged)
}

// failureText renders a feed failure for the status line.
func failureText(err error) string {
	msg := err.Error()
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		msg += fmt.Sprintf(". The remote server returned status code: %d.", httpErr.StatusCode)
	}
	return msg
}

func (c *Coordinator) snapshot() State {
	s := State{
		Items:      append([]core.SearchResult(nil), c.items...),
		Selected:   c.selected,
		Status:     c.status,
		HasError:   c.hasError,
		Loading:    c.loading,
		HasMore:    c.query != nil && c.query.HasMore(),
		Term:       c.term,
		TypingText: c.typing,
		Source:     c.reg.Active(),
		Prerelease: c.prerelease,
		Fixed:      c.reg.IsFixed(),
	}
	if c.feed != nil {
		s.Kind = c.feed.Kind()
	}
	if n := len(s.Items); n > 0 {
		s.Begin, s.End = 1, n
	}
	s.TotalDownloads = core.TotalDownloads(s.Items)
	return s
}
