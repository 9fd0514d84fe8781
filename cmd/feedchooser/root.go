package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/git-pkgs/feedchooser/client"
	"github.com/git-pkgs/feedchooser/internal/chooser"
	"github.com/git-pkgs/feedchooser/internal/config"
	"github.com/git-pkgs/feedchooser/internal/core"
	"github.com/git-pkgs/feedchooser/internal/logging"
	"github.com/git-pkgs/feedchooser/internal/settings"
	"github.com/git-pkgs/feedchooser/internal/sources"
)

type globalFlags struct {
	configPath   string
	settingsPath string
	source       string
	prerelease   bool
	logLevel     string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "feedchooser",
		Short:         "Browse and search NuGet package feeds",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Path to configuration file")
	pf.StringVar(&g.settingsPath, "settings", "", "Path to settings database (overrides config)")
	pf.StringVar(&g.source, "source", "", "Use this feed and keep it fixed for the run")
	pf.BoolVar(&g.prerelease, "prerelease", false, "Include prerelease versions")
	pf.StringVar(&g.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")

	cmd.AddCommand(
		newSearchCmd(g),
		newBrowseCmd(g),
		newSourcesCmd(g),
		newVersionsCmd(g),
		newDownloadCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// app holds what every feed command needs.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *settings.Store
	reg        *sources.Registry
	client     *client.Client
	prerelease bool
	out        printer
}

func newApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.settingsPath != "" {
		cfg.Settings.Path = g.settingsPath
	}

	logger, err := logging.Setup(cfg.Logging)
	if err != nil {
		logger = logging.NullLogger()
	}

	store, err := settings.Open(cfg.Settings.Path)
	if err != nil {
		return nil, err
	}

	opts := append(sources.PackageSourceOptions(),
		sources.WithBound(cfg.Feed.MaxSources),
		sources.WithCredentials(store),
		sources.WithLogger(logger),
	)
	if def := core.NewSource(cfg.Feed.DefaultSource); !def.IsZero() && !def.Equal(core.NewSource(sources.DefaultPackageSource)) {
		opts = append(opts, sources.WithDefault(def))
	}
	if g.source != "" {
		opts = append(opts, sources.WithFixed(store.Apply(core.NewSource(g.source))))
	}

	reg, err := sources.New(store.Sources(settings.PackageList), opts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("loading package sources: %w", err)
	}

	prerelease := cfg.UI.ShowPrerelease && store.ShowPrerelease()
	if f := cmd.Flag("prerelease"); f != nil && f.Changed {
		prerelease = g.prerelease
	}

	c := client.NewClient(
		client.WithTimeout(cfg.Feed.Timeout),
		client.WithMaxRetries(cfg.Feed.MaxRetries),
	).WithUserAgent(cfg.Feed.UserAgent)

	logger.Debug("starting feedchooser", "version", Version, "command", cmd.Name())

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		reg:        reg,
		client:     c,
		prerelease: prerelease,
		out:        newPrinter(cmd.OutOrStdout()),
	}, nil
}

func (a *app) open(src core.Source) (core.Feed, error) {
	return core.Open(src, a.client)
}

// activeFeed opens the active source.
func (a *app) activeFeed() (core.Feed, error) {
	return a.open(a.reg.Active())
}

func (a *app) coordinator() *chooser.Coordinator {
	return chooser.New(a.reg, a.open,
		chooser.WithPageSize(a.cfg.Feed.PageSize),
		chooser.WithPrerelease(a.prerelease),
		chooser.WithLogger(a.logger),
	)
}

// Close persists the source list and releases the settings file.
func (a *app) Close() error {
	return errors.Join(a.reg.Close(), a.store.Close())
}

// printer writes command output, styled only when it goes to a terminal.
type printer struct {
	w     io.Writer
	color bool

	title lipgloss.Style
	dim   lipgloss.Style
	mark  lipgloss.Style
	warn  lipgloss.Style
}

func newPrinter(w io.Writer) printer {
	p := printer{w: w, color: isTerminal(w)}
	if p.color {
		p.title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
		p.dim = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
		p.mark = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#95E1D3"))
		p.warn = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p printer) Title(text string) string { return p.render(p.title, text) }
func (p printer) Dim(text string) string   { return p.render(p.dim, text) }
func (p printer) Mark(text string) string  { return p.render(p.mark, text) }
func (p printer) Warn(text string) string  { return p.render(p.warn, text) }

func (p printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func (p printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.w, args...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "feedchooser %s\n", Version)
			_, _ = fmt.Fprintln(out, "NuGet feed chooser")
			_, _ = fmt.Fprintln(out, "github.com/git-pkgs/feedchooser")
		},
	}
}
