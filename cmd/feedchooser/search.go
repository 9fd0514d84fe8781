package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/feedchooser/internal/chooser"
	"github.com/git-pkgs/feedchooser/internal/core"
)

func newSearchCmd(g *globalFlags) *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Search the active feed",
		Long:  "Search the active feed. Without a term the feed's most popular packages are listed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			return runSearch(cmd.Context(), a, term, pages)
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	return cmd
}

func runSearch(ctx context.Context, a *app, term string, pages int) error {
	c := a.coordinator()
	defer func() { _ = c.Close() }()

	if ctx == nil {
		ctx = context.Background()
	}

	start := c.Load
	if strings.TrimSpace(term) != "" {
		start = func() error { return c.Search(term) }
	}
	if err := start(); err != nil {
		return err
	}
	if err := c.WaitIdle(ctx); err != nil {
		return err
	}

	for loaded := 1; loaded < pages; loaded++ {
		state := c.Snapshot()
		if state.HasError || !state.HasMore {
			break
		}
		if err := c.LoadMore(); err != nil {
			return err
		}
		if err := c.WaitIdle(ctx); err != nil {
			return err
		}
	}

	state := c.Snapshot()
	printState(a.out, state)
	if state.HasError {
		return errors.New(state.Status)
	}
	return nil
}

func printState(p printer, s chooser.State) {
	if s.Status != "" && !s.HasError {
		p.Println(p.Warn(s.Status))
	}
	if s.HasError {
		return
	}
	if len(s.Items) == 0 {
		p.Println(p.Dim(fmt.Sprintf("No packages found on %s", s.Source)))
		return
	}

	for _, item := range s.Items {
		printResult(p, item)
	}

	summary := fmt.Sprintf("%d-%d  %s downloads  from %s", s.Begin, s.End, core.FormatDownloads(s.TotalDownloads), s.Source)
	if s.HasMore {
		summary += "  (more with --pages)"
	}
	p.Println(p.Dim(summary))
}

func printResult(p printer, r core.SearchResult) {
	line := fmt.Sprintf("%s %s", p.Title(r.ID), r.Version)
	if r.DownloadCount > 0 {
		line += p.Dim(fmt.Sprintf("  %s downloads", core.FormatDownloads(r.DownloadCount)))
	}
	if r.IsUnlisted() {
		line += p.Warn("  unlisted")
	}
	p.Println(line)

	desc := r.Summary
	if desc == "" {
		desc = r.Description
	}
	if desc = strings.TrimSpace(strings.ReplaceAll(desc, "\n", " ")); desc != "" {
		if len(desc) > 100 {
			desc = desc[:97] + "..."
		}
		p.Println("  " + p.Dim(desc))
	}
}
