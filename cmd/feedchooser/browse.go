package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/feedchooser/internal/tui"
)

func newBrowseCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the active feed interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			c := a.coordinator()
			defer func() { _ = c.Close() }()

			model := tui.New(c, tui.Options{
				AutoLoad: a.cfg.UI.AutoLoad && a.store.AutoLoad(),
				Sources:  a.reg.Sources,
			})

			a.logger.Info("starting TUI")
			final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
			if err != nil {
				a.logger.Error("TUI error", "error", err)
				return fmt.Errorf("TUI error: %w", err)
			}

			if err := a.store.SetShowPrerelease(c.Snapshot().Prerelease); err != nil {
				a.logger.Warn("saving preferences", "error", err)
			}

			if m, ok := final.(tui.Model); ok {
				if item, ok := m.Selected(); ok {
					a.out.Println(item.PURL())
				}
			}
			return nil
		},
	}
}
