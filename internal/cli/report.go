package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkgwatch/pkgwatch/pkg/cache"
	"github.com/pkgwatch/pkgwatch/pkg/report"
)

// newReportCmd creates the terminal "report" command.
func (a *app) newReportCmd() *cobra.Command {
	var opts report.Options

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show recent upstream events grouped by upstream",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			return report.Write(cmd.OutOrStdout(), db, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "maximum number of events to show")
	cmd.Flags().StringVar(&opts.Category, "category", "", "only events of this category (release, tag, commit, news, ...)")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "only events from the last N days")
	cmd.Flags().BoolVar(&opts.Plain, "plain", false, "disable color")
	return cmd
}

// atomTTL is how long a rendered feed document is reused.
const atomTTL = 5 * time.Minute

// newFeedCmd creates the Atom export command. The rendered document is
// cached briefly so a feed reader polling aggressively does not re-query
// the database every time.
func (a *app) newFeedCmd() *cobra.Command {
	var (
		opts  report.Options
		title string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Export recent upstream events as an Atom feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			c, err := a.openCache()
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer c.Close()

			key := cache.Key(fmt.Sprintf("atom:%d:%s:%d", opts.Count, opts.Category, opts.Days))
			doc := ""
			if data, hit, err := c.Get(cmd.Context(), key); err == nil && hit {
				doc = string(data)
			} else {
				doc, err = report.Atom(db, opts, title, "")
				if err != nil {
					return err
				}
				_ = c.Set(cmd.Context(), key, []byte(doc), atomTTL)
			}

			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), doc)
				return nil
			}
			return os.WriteFile(out, []byte(doc), 0o644)
		},
	}
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "maximum number of entries")
	cmd.Flags().StringVar(&opts.Category, "category", "", "only events of this category")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "only events from the last N days")
	cmd.Flags().StringVar(&title, "title", "pkgwatch updates", "feed title")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the document to a file instead of stdout")
	return cmd
}
