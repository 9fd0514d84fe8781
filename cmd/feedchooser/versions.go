package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/feedchooser/internal/core"
)

func newVersionsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List the published versions of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			feed, err := a.activeFeed()
			if err != nil {
				return err
			}
			lister, ok := feed.(core.VersionLister)
			if !ok {
				return fmt.Errorf("%s feeds cannot list versions", feed.Kind())
			}

			versions, err := lister.FetchVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !a.prerelease {
				versions = stableVersions(versions)
			}
			slices.SortFunc(versions, func(x, y core.Version) int {
				return core.CompareVersions(y.Number, x.Number)
			})

			for _, v := range versions {
				line := v.Number
				if !v.PublishedAt.IsZero() {
					line += a.out.Dim("  " + v.PublishedAt.Format("2006-01-02"))
				}
				if v.Status != core.StatusNone {
					line += a.out.Warn("  " + string(v.Status))
				}
				a.out.Println(line)
			}
			return nil
		},
	}
}

func stableVersions(versions []core.Version) []core.Version {
	out := versions[:0:0]
	for _, v := range versions {
		if !core.IsPrerelease(v.Number) {
			out = append(out, v)
		}
	}
	return out
}
