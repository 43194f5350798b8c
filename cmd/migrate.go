package cmd

import (
	"library_backend/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes if absent",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log := setup()
		conn, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer db.Close(conn)
		if err := db.Migrate(conn); err != nil {
			return err
		}
		log.Info(cmd.Context(), "schema up to date", "driver", cfg.DBDriver)
		return nil
	},
}
