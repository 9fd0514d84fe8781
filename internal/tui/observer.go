package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/git-pkgs/feedchooser/internal/chooser"
)

// ChannelObserver forwards coordinator events to a channel read by the program.
type ChannelObserver struct {
	ch chan chooser.Event
}

// NewChannelObserver creates an observer with room for size pending events.
func NewChannelObserver(size int) *ChannelObserver {
	return &ChannelObserver{ch: make(chan chooser.Event, size)}
}

// OnEvent queues ev without blocking. When the program falls behind, events are
// dropped; each one carries the full state, so the next one catches up.
func (o *ChannelObserver) OnEvent(ev chooser.Event) {
	select {
	case o.ch <- ev:
	default:
	}
}

// eventMsg wraps a coordinator event for Update.
type eventMsg chooser.Event

// listen waits for the next event.
func (o *ChannelObserver) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-o.ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}
