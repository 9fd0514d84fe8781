package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/feedchooser/fetch"
	"github.com/git-pkgs/feedchooser/internal/core"
)

func newDownloadCmd(g *globalFlags) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download <id|purl> [version]",
		Short: "Download a package archive",
		Long: "Download a package archive from the active feed. The package may be given as a\n" +
			"Package URL such as pkg:nuget/Newtonsoft.Json@13.0.3; a repository_url qualifier\n" +
			"selects the feed. Without a version the latest listed version is fetched.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			id, version := args[0], ""
			if len(args) == 2 {
				version = args[1]
			}
			src := a.reg.Active()

			if strings.HasPrefix(id, "pkg:") {
				p, err := core.ParsePURL(id)
				if err != nil {
					return err
				}
				id = p.ID()
				if version == "" {
					version = p.Version
				}
				if repo, ok := p.Source(); ok && !a.reg.IsFixed() {
					src = a.store.Apply(repo)
				}
			}

			if dir == "" {
				dir = a.cfg.Download.Dir
			}

			feed, err := a.open(src)
			if err != nil {
				return err
			}

			info, err := fetch.NewResolver().Resolve(cmd.Context(), feed, id, version)
			if err != nil {
				return err
			}
			a.logger.Info("downloading package", "id", info.ID, "version", info.Version, "url", info.URL)

			fetcher := fetch.NewCircuitBreakerFetcher(
				fetch.NewFetcher(
					fetch.WithUserAgent(a.cfg.Feed.UserAgent),
					fetch.WithMaxRetries(a.cfg.Feed.MaxRetries),
					fetch.WithCredentials(src.Credentials),
				),
				a.client.Breakers(),
			)

			path, err := fetch.Save(cmd.Context(), fetcher, info, dir)
			if err != nil {
				return fmt.Errorf("downloading %s %s: %w", info.ID, info.Version, err)
			}
			a.out.Printf("Saved %s %s to %s\n", a.out.Title(info.ID), info.Version, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to save into (overrides config)")
	return cmd
}
