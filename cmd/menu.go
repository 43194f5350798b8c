package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"library_backend/app"
	"library_backend/db"
	"library_backend/menu"
	"library_backend/service"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Run the interactive console menu",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log := setup()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		conn, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer db.Close(conn)
		if err := db.Migrate(conn); err != nil {
			return err
		}

		repo := db.NewRepo(conn)
		catalog := service.NewCatalogService(repo, log)
		identity := service.NewIdentityService(repo, log)
		loans := service.NewLoanService(repo, log, cfg.Loans)
		app.BootstrapFirstAdmin(ctx, cfg, identity, log)

		m := menu.New(catalog, identity, loans, os.Stdin, os.Stdout)
		m.AllowAdminSignup = cfg.AllowAdminSignup
		if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
			// 终端下输入密码不回显
			m.ReadPassword = func() (string, error) {
				b, err := term.ReadPassword(fd)
				fmt.Println()
				return string(b), err
			}
		}
		if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
