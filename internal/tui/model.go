// Package tui is the interactive package chooser.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/git-pkgs/feedchooser/internal/chooser"
	"github.com/git-pkgs/feedchooser/internal/core"
)

// Options configures the chooser model.
type Options struct {
	// AutoLoad searches as soon as the program starts.
	AutoLoad bool
	// Sources lists the sources offered by the picker.
	Sources func() []core.Source
}

// Model is the Bubble Tea model over a chooser coordinator.
type Model struct {
	c           *chooser.Coordinator
	opts        Options
	obs         *ChannelObserver
	unsubscribe func()

	keys  KeyMap
	help  help.Model
	input textinput.Model

	state   chooser.State
	picking bool
	picker  picker
	err     error

	width  int
	height int
}

// New subscribes to c and returns the model. The caller closes c after the program exits.
func New(c *chooser.Coordinator, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "search packages"
	ti.Prompt = "> "
	ti.Focus()

	obs := NewChannelObserver(64)
	m := Model{
		c:     c,
		opts:  opts,
		obs:   obs,
		keys:  DefaultKeyMap(),
		help:  help.New(),
		input: ti,
		state: c.Snapshot(),
	}
	m.unsubscribe = c.Subscribe(obs.OnEvent)
	m.input.SetValue(m.state.TypingText)
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.obs.listen()}
	if m.opts.AutoLoad {
		cmds = append(cmds, m.loadCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.c.Load(); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

type errMsg struct{ err error }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.state = msg.State
		return m, m.obs.listen()

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.unsubscribe()
			return m, tea.Quit
		}
		if m.picking {
			return m.updatePicker(msg)
		}
		return m.updateChooser(msg)
	}
	return m, nil
}

func (m Model) updateChooser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch {
	case key.Matches(msg, m.keys.Search):
		err = m.c.Search(m.input.Value())
	case key.Matches(msg, m.keys.Clear):
		m.input.SetValue("")
		err = m.c.ClearSearch()
	case key.Matches(msg, m.keys.Prerelease):
		err = m.c.SetPrerelease(!m.state.Prerelease)
	case key.Matches(msg, m.keys.LoadMore):
		err = m.c.LoadMore()
	case key.Matches(msg, m.keys.Cancel):
		err = m.c.Cancel()
	case key.Matches(msg, m.keys.Sources):
		if m.state.Fixed {
			m.err = fmt.Errorf("the package source is fixed to %s", m.state.Source.URL)
			return m, nil
		}
		m.picking = true
		m.picker = newPicker(m.sources())
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Up):
		if m.state.Selected > 0 {
			err = m.c.Select(m.state.Selected - 1)
		}
	case key.Matches(msg, m.keys.Down):
		if m.state.Selected < len(m.state.Items)-1 {
			err = m.c.Select(m.state.Selected + 1)
		}
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		err = m.c.SetTypingSearch(m.input.Value())
		m.err = err
		m.state = m.c.Snapshot()
		return m, cmd
	}

	m.err = err
	m.state = m.c.Snapshot()
	return m, nil
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.picking = false
		return m, nil
	case key.Matches(msg, m.keys.Search):
		choice := m.picker.choice()
		m.picking = false
		if choice == "" {
			return m, nil
		}
		m.err = m.c.ChangeSource(choice)
		m.state = m.c.Snapshot()
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.picker.move(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.picker.move(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.picker.input, cmd = m.picker.input.Update(msg)
	m.picker.filter()
	return m, cmd
}

func (m Model) sources() []core.Source {
	if m.opts.Sources != nil {
		return m.opts.Sources()
	}
	return []core.Source{m.state.Source}
}

// Selected returns the package highlighted when the program exited.
func (m Model) Selected() (core.SearchResult, bool) {
	return m.state.SelectedItem()
}

func (m Model) View() string {
	var b strings.Builder

	header := "feedchooser  " + m.state.Source.String()
	if m.state.Kind != "" {
		header += " [" + string(m.state.Kind) + "]"
	}
	if m.state.Prerelease {
		header += "  prerelease"
	}
	b.WriteString(titleStyle.Render(header) + "\n")

	if m.picking {
		b.WriteString(m.picker.view(m.state.Source) + "\n")
		return b.String()
	}

	b.WriteString(m.input.View() + "\n\n")
	b.WriteString(m.listView())
	b.WriteString("\n" + m.statusView() + "\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// listRows is the number of result rows that fit the window.
func (m Model) listRows() int {
	if m.height <= 0 {
		return 15
	}
	return max(m.height-7, 3)
}

func (m Model) listView() string {
	items := m.state.Items
	if len(items) == 0 {
		return dimStyle.Render("  no packages") + "\n"
	}

	rows := m.listRows()
	start := 0
	if m.state.Selected >= rows {
		start = m.state.Selected - rows + 1
	}
	end := min(start+rows, len(items))

	var b strings.Builder
	for i := start; i < end; i++ {
		it := items[i]
		line := fmt.Sprintf("%-40s %-16s %8s", truncate(it.DisplayTitle(), 40), it.Version, core.FormatDownloads(it.DownloadCount))
		if it.IsUnlisted() {
			line += dimStyle.Render("  unlisted")
		}
		if i == m.state.Selected {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}

func (m Model) statusView() string {
	switch {
	case m.err != nil:
		return errorStyle.Render(m.err.Error())
	case m.state.HasError:
		return errorStyle.Render(m.state.Status)
	case m.state.Status != "":
		return noticeStyle.Render(m.state.Status)
	case m.state.Loading:
		return dimStyle.Render("Loading...")
	case len(m.state.Items) == 0:
		return ""
	}

	text := fmt.Sprintf("%d-%d  %s downloads", m.state.Begin, m.state.End, core.FormatDownloads(m.state.TotalDownloads))
	if m.state.HasMore {
		text += "  (more with C-n)"
	}
	return dimStyle.Render(text)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
