// Package cmd holds the command-line entry points.
package cmd

import (
	"fmt"
	"os"

	"library_backend/config"
	"library_backend/logging"

	"github.com/spf13/cobra"
)

var (
	dbDriver   string
	sqlitePath string
)

var rootCmd = &cobra.Command{
	Use:           "library",
	Short:         "Library management backend: books, users and loans",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "override DB_DRIVER (postgres|sqlite)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "override SQLITE_PATH")
	rootCmd.AddCommand(serveCmd, menuCmd, reconcileCmd, migrateCmd)
}

// Execute runs the root command; main calls this.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads .env and the environment, applies flag overrides and builds the logger.
func setup() (config.Config, *logging.SlogLogger) {
	config.LoadEnv()
	cfg := config.Load()
	if dbDriver != "" {
		cfg.DBDriver = dbDriver
	}
	if sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
		if dbDriver == "" {
			cfg.DBDriver = "sqlite"
		}
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}
