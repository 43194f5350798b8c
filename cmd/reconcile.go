package cmd

import (
	"fmt"

	"library_backend/db"
	"library_backend/service"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute available copies from open loans and repair drifted books",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log := setup()
		conn, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer db.Close(conn)

		loans := service.NewLoanService(db.NewRepo(conn), log, cfg.Loans)
		fixed, err := loans.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(fixed) == 0 {
			fmt.Fprintln(out, "All books consistent.")
			return nil
		}
		fmt.Fprintf(out, "%-8s %-30s %-7s %-10s %-6s %-8s\n", "Book ID", "Title", "Total", "Available", "Open", "Fixed to")
		for _, d := range fixed {
			fmt.Fprintf(out, "%-8d %-30s %-7d %-10d %-6d %-8d\n", d.BookID, d.Title, d.Total, d.Available, d.OpenLoans, d.Expected)
		}
		return nil
	},
}
