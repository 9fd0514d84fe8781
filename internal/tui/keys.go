package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the chooser's key bindings.
type KeyMap struct {
	Search     key.Binding
	Clear      key.Binding
	Prerelease key.Binding
	LoadMore   key.Binding
	Cancel     key.Binding
	Sources    key.Binding
	Up         key.Binding
	Down       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Search: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "search"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear"),
		),
		Prerelease: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "prerelease"),
		),
		LoadMore: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "more"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Sources: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "sources"),
		),
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp lists the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.LoadMore, k.Prerelease, k.Sources, k.Clear, k.Cancel, k.Quit}
}

// FullHelp satisfies help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Up, k.Down}}
}
