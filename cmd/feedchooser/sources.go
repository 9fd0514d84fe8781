package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/feedchooser/internal/core"
)

func newSourcesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage remembered package sources",
	}
	cmd.AddCommand(newSourcesListCmd(g), newSourcesAddCmd(g), newSourcesUseCmd(g))
	return cmd
}

func newSourcesListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remembered sources, the active one marked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			active := a.reg.Active()
			listed := false
			for _, src := range a.reg.Sources() {
				printSource(a.out, src, src.Equal(active))
				listed = listed || src.Equal(active)
			}
			if !listed {
				printSource(a.out, active, true)
			}
			if a.reg.IsFixed() {
				a.out.Println(a.out.Dim("(source fixed by --source)"))
			}
			return nil
		},
	}
}

func printSource(p printer, src core.Source, active bool) {
	marker := "  "
	if active {
		marker = p.Mark("* ")
	}
	kind, err := core.ProbeKind(src.URL)
	if err != nil {
		kind = "invalid"
	}
	auth := ""
	if src.Credentials != nil && !src.Credentials.IsZero() {
		auth = p.Dim("  (authenticated)")
	}
	if src.Name != "" && src.Name != src.URL {
		p.Printf("%s%s  %s  %s%s\n", marker, p.Title(src.Name), src.URL, p.Dim(string(kind)), auth)
		return
	}
	p.Printf("%s%s  %s%s\n", marker, src.URL, p.Dim(string(kind)), auth)
}

func newSourcesAddCmd(g *globalFlags) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Remember a source, optionally with credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			src := core.NewSource(args[0])
			if _, err := core.ProbeKind(src.URL); err != nil {
				return err
			}
			if username != "" || password != "" {
				creds := core.Credentials{Username: username, Password: password}
				if err := a.store.SetCredentials(src.URL, creds); err != nil {
					return fmt.Errorf("saving credentials: %w", err)
				}
			}
			if err := a.reg.NotifySourceUsed(src); err != nil {
				return err
			}
			a.out.Printf("Added %s\n", src.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "User name for the feed")
	cmd.Flags().StringVar(&password, "password", "", "Password or API key for the feed")
	return cmd
}

func newSourcesUseCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "use <url>",
		Short: "Make a source the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			src := core.NewSource(args[0])
			if _, err := core.ProbeKind(src.URL); err != nil {
				return err
			}
			if err := a.reg.NotifySourceUsed(src); err != nil {
				return err
			}
			if err := a.reg.SetActive(src); err != nil {
				return err
			}
			a.out.Printf("Using %s\n", a.reg.Active().URL)
			return nil
		},
	}
}
