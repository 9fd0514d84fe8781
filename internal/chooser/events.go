package chooser

import (
	"github.com/git-pkgs/feedchooser/internal/core"
)

// EventKind says what changed.
type EventKind int

const (
	ItemsChanged EventKind = iota
	StatusChanged
	LoadingChanged
	SelectionChanged
	SourceChanged
	LoadCompleted
)

func (k EventKind) String() string {
	switch k {
	case ItemsChanged:
		return "items-changed"
	case StatusChanged:
		return "status-changed"
	case LoadingChanged:
		return "loading-changed"
	case SelectionChanged:
		return "selection-changed"
	case SourceChanged:
		return "source-changed"
	case LoadCompleted:
		return "load-completed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers with the state as it was when the change happened.
type Event struct {
	Kind  EventKind
	State State
}

// State is a copy of everything observable about the chooser.
type State struct {
	Items          []core.SearchResult
	Selected       int // -1 when nothing is selected
	Status         string
	HasError       bool
	Loading        bool
	HasMore        bool
	Term           string
	TypingText     string
	Source         core.Source
	Kind           core.Kind
	Prerelease     bool
	Fixed          bool
	Begin          int // 1-based index of the first displayed item, 0 when empty
	End            int
	TotalDownloads int64
}

// SelectedItem returns the selected result, if any.
func (s State) SelectedItem() (core.SearchResult, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Items) {
		return core.SearchResult{}, false
	}
	return s.Items[s.Selected], true
}

// Subscribe registers fn for every event and returns a function that removes it.
// Handlers run on the coordinator's loop: they must return quickly and must not
// call back into the coordinator.
// Subscribing to a closed coordinator does nothing.
func (c *Coordinator) Subscribe(fn func(Event)) (unsubscribe func()) {
	var id int
	err := c.do(func() {
		c.nextHandler++
		id = c.nextHandler
		c.handlers[id] = fn
	})
	if err != nil {
		return func() {}
	}
	return func() {
		_ = c.do(func() { delete(c.handlers, id) })
	}
}

// emit sends an event to every subscriber. Loop only.
func (c *Coordinator) emit(kind EventKind) {
	if len(c.handlers) == 0 {
		return
	}
	ev := Event{Kind: kind, State: c.snapshot()}
	for _, fn := range c.handlers {
		fn(ev)
	}
}
