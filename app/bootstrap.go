// app/bootstrap.go
package app

import (
	"context"

	"library_backend/config"
	"library_backend/logging"
	"library_backend/service"
)

// BootstrapFirstAdmin creates the configured admin account when the store has no admin yet.
func BootstrapFirstAdmin(ctx context.Context, cfg config.Config, identity *service.IdentityService, log logging.Logger) {
	if cfg.BootstrapAdminUsername == "" {
		return
	}
	fullName := cfg.BootstrapAdminFullName
	if fullName == "" {
		fullName = "Administrator"
	}
	created, err := identity.EnsureAdmin(ctx, service.Registration{
		Username: cfg.BootstrapAdminUsername,
		Password: cfg.BootstrapAdminPassword,
		FullName: fullName,
		Email:    cfg.BootstrapAdminEmail,
	})
	if err != nil {
		log.Error(ctx, "bootstrap admin failed", "username", cfg.BootstrapAdminUsername, "err", err, "reason", service.MessageOf(err))
		return
	}
	if created {
		log.Info(ctx, "[BOOTSTRAP] no admin found, created admin account", "username", cfg.BootstrapAdminUsername)
	}
}
