// Package cli implements the pkgwatch command-line interface.
//
// Commands cover the whole lifecycle: import a catalog of packages and
// upstreams, check them once or watch continuously, read the results as a
// terminal report or an Atom feed, and track package requests. All
// commands support --verbose (-v) for debug-level logging; loggers travel
// through context.Context.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pkgwatch/pkgwatch/internal/config"
	"github.com/pkgwatch/pkgwatch/pkg/buildinfo"
	"github.com/pkgwatch/pkgwatch/pkg/cache"
	"github.com/pkgwatch/pkgwatch/pkg/checkers"
	"github.com/pkgwatch/pkgwatch/pkg/engine"
	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/store"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

// app carries the loaded configuration across commands.
type app struct {
	cfgPath string
	cfg     *config.Config
}

// Execute runs the pkgwatch CLI.
func Execute(ctx context.Context) error {
	var verbose bool
	a := &app{}

	root := &cobra.Command{
		Use:          "pkgwatch",
		Short:        "pkgwatch tracks new releases and activity of upstream projects",
		Long:         `pkgwatch polls configured upstreams (VCS hosts, package registries, feeds, directory listings) for new releases, tags, commits and news, deduplicates them against its database, and renders the result as a report or an Atom feed.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/pkgwatch/config.toml)")

	root.AddCommand(a.newCheckCmd())
	root.AddCommand(a.newWatchCmd())
	root.AddCommand(a.newReportCmd())
	root.AddCommand(a.newFeedCmd())
	root.AddCommand(a.newImportCmd())
	root.AddCommand(a.newPakreqCmd())
	root.AddCommand(a.newCacheCmd())

	return root.ExecuteContext(ctx)
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.cfgPath != "" {
		return config.LoadFrom(a.cfgPath)
	}
	return config.Load()
}

// openStore opens the configured database, creating parent directories as
// needed.
func (a *app) openStore() (*store.DB, error) {
	path, err := a.cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

// newRegistry builds the checker registry with the shared HTTP client,
// carrying any configured auth tokens.
func (a *app) newRegistry() *upstream.Registry {
	client := fetch.NewClient(nil).WithAuth(a.cfg.Auth.Token, a.cfg.Auth.Hosts)
	return checkers.Default(client)
}

// newEngine wires the store and registry under the configured run bounds.
func (a *app) newEngine(db *store.DB, logger *charmlog.Logger) *engine.Engine {
	return engine.New(db, a.newRegistry(), engine.Config{
		Workers:     a.cfg.Run.Workers,
		TaskTimeout: a.cfg.Run.TaskTimeout.Duration,
		Lookback:    a.cfg.Run.Lookback.Duration,
		RunBudget:   a.cfg.Run.Budget.Duration,
	}, logger)
}

// openCache builds the configured cache backend.
func (a *app) openCache() (cache.Cache, error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(a.cfg.Cache.URL, a.cfg.Cache.Prefix)
	case "null":
		return cache.NewNullCache(), nil
	default:
		dir, err := a.cfg.CacheDir()
		if err != nil {
			return nil, err
		}
		return cache.NewFileCache(dir)
	}
}
