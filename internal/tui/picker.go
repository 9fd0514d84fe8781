package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/sahilm/fuzzy"

	"github.com/git-pkgs/feedchooser/internal/core"
)

// picker chooses a source from the remembered list, or takes a typed URL.
type picker struct {
	input   textinput.Model
	sources []core.Source
	matches []int // indices into sources
	cursor  int
}

func newPicker(srcs []core.Source) picker {
	ti := textinput.New()
	ti.Placeholder = "filter or type a feed URL"
	ti.Prompt = "source> "
	ti.Focus()

	p := picker{input: ti, sources: srcs}
	p.filter()
	return p
}

func (p *picker) filter() {
	query := strings.TrimSpace(p.input.Value())
	p.cursor = 0
	if query == "" {
		p.matches = make([]int, len(p.sources))
		for i := range p.sources {
			p.matches[i] = i
		}
		return
	}

	targets := make([]string, len(p.sources))
	for i, s := range p.sources {
		targets[i] = strings.ToLower(s.Name + " " + s.URL)
	}
	found := fuzzy.Find(strings.ToLower(query), targets)
	p.matches = make([]int, len(found))
	for i, m := range found {
		p.matches[i] = m.Index
	}
}

func (p *picker) move(delta int) {
	if len(p.matches) == 0 {
		return
	}
	p.cursor = (p.cursor + delta + len(p.matches)) % len(p.matches)
}

// choice returns the highlighted source URL, or the typed text when nothing matches.
func (p *picker) choice() string {
	if len(p.matches) > 0 {
		return p.sources[p.matches[p.cursor]].URL
	}
	return strings.TrimSpace(p.input.Value())
}

func (p *picker) view(active core.Source) string {
	var b strings.Builder
	b.WriteString(p.input.View())
	b.WriteString("\n")
	for i, idx := range p.matches {
		src := p.sources[idx]
		line := src.URL
		if src.Name != "" && src.Name != src.URL {
			line = src.Name + "  " + dimStyle.Render(src.URL)
		}
		if src.Equal(active) {
			line += dimStyle.Render("  (active)")
		}
		if i == p.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if len(p.matches) == 0 && p.input.Value() != "" {
		b.WriteString(dimStyle.Render("  enter to use this URL") + "\n")
	}
	return pickerStyle.Render(strings.TrimRight(b.String(), "\n"))
}
