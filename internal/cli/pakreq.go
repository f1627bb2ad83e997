package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgwatch/pkgwatch/pkg/store"
)

// newPakreqCmd creates the package-request tracking command.
func (a *app) newPakreqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pakreq",
		Short: "Track requests for packages not yet in the distribution",
	}
	cmd.AddCommand(a.pakreqAddCmd())
	cmd.AddCommand(a.pakreqListCmd())
	cmd.AddCommand(a.pakreqResolveCmd())
	return cmd
}

func (a *app) pakreqAddCmd() *cobra.Command {
	var description, url string

	cmd := &cobra.Command{
		Use:   "add <package>",
		Short: "File a request for a new package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := db.AddRequest(store.Request{
				Package:     args[0],
				Description: description,
				URL:         url,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requested %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "what the package is")
	cmd.Flags().StringVarP(&url, "url", "u", "", "upstream homepage or source URL")
	return cmd
}

func (a *app) pakreqListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open package requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			reqs, err := db.ListRequests(all)
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no requests")
				return nil
			}
			for _, r := range reqs {
				status := "open"
				if r.Resolution != "" {
					status = r.Resolution
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-10s %s\n", r.Package, status, r.Description)
				if r.URL != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-10s %s\n", "", "", r.URL)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include resolved requests")
	return cmd
}

func (a *app) pakreqResolveCmd() *cobra.Command {
	var resolution string

	cmd := &cobra.Command{
		Use:   "resolve <package>",
		Short: "Mark a package request as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if req, err := db.GetRequest(args[0]); err != nil {
				return err
			} else if req == nil {
				return fmt.Errorf("no request for %q", args[0])
			}

			if err := db.ResolveRequest(args[0], resolution); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolved %s (%s)\n", args[0], resolution)
			return nil
		},
	}
	cmd.Flags().StringVarP(&resolution, "as", "r", "packaged", "resolution, e.g. packaged or rejected")
	return cmd
}
