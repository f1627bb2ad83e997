package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkgwatch/pkgwatch/pkg/engine"
)

// newCheckCmd creates the one-shot "check" command.
func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check all upstreams once and store new events",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			logger := loggerFromContext(cmd.Context())
			sum, err := a.newEngine(db, logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

// newWatchCmd creates the continuous "watch" command.
func (a *app) newWatchCmd() *cobra.Command {
	var interval string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check all upstreams on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			every := a.cfg.Run.Interval.Duration
			if interval != "" {
				d, err := time.ParseDuration(interval)
				if err != nil {
					return fmt.Errorf("bad interval %q: %w", interval, err)
				}
				every = d
			}

			logger := loggerFromContext(cmd.Context())
			runner := engine.NewRunner(a.newEngine(db, logger), every)
			return runner.Watch(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&interval, "interval", "i", "", "time between runs, e.g. 30m (default from config)")
	return cmd
}

// printSummary renders a run summary for a human.
func printSummary(w io.Writer, sum *engine.Summary) {
	fmt.Fprintf(w, "checked %d subscriptions: %d new, %d unchanged, %d failed, %d deferred (%s)\n",
		sum.Checked, sum.NewEvents, sum.NotModified, len(sum.Failed), len(sum.Deferred),
		sum.Duration.Round(time.Millisecond))
	for _, f := range sum.Failed {
		fmt.Fprintf(w, "  failed: %s: %v\n", f.Upstream, f.Err)
	}
	for _, d := range sum.Deferred {
		fmt.Fprintf(w, "  deferred: %s (retry after %s)\n", d.Upstream, d.RetryAfter)
	}
}
