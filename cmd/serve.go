package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"library_backend/app"
	"library_backend/routes"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log := setup()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		application, err := app.Open(cfg, log)
		if err != nil {
			return err
		}
		defer application.Close()

		app.BootstrapFirstAdmin(ctx, cfg, application.Identity, log)
		if cfg.ReconcileOnStart {
			if _, err := application.Loans.Reconcile(ctx); err != nil {
				log.Error(ctx, "startup reconcile failed", "err", err)
			}
		}
		routes.RegisterRoutes(application.Router, application)

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           application.Router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			log.Info(ctx, "listening", "addr", srv.Addr, "db", cfg.DBDriver)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		log.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
