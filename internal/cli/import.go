package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgwatch/pkgwatch/internal/config"
)

// newImportCmd creates the catalog import command.
func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog.toml>",
		Short: "Import packages, upstreams and subscriptions from a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := config.LoadCatalog(args[0])
			if err != nil {
				return err
			}

			// Reject unknown upstream types before touching the store.
			reg := a.newRegistry()
			for _, u := range cat.Upstreams {
				if _, err := reg.Dispatch(u.Type); err != nil {
					return fmt.Errorf("upstream %q: %w", u.Name, err)
				}
			}

			db, err := a.openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			stats, err := cat.Import(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d packages, %d upstreams, %d subscriptions\n",
				stats.Packages, stats.Upstreams, stats.Subscriptions)
			return nil
		},
	}
}
