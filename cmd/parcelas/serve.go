package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArionMiles/parcelas/internal/plugins"
	"github.com/ArionMiles/parcelas/internal/server"
	"github.com/ArionMiles/parcelas/pkg/auth"
	"github.com/ArionMiles/parcelas/pkg/config"
	"github.com/ArionMiles/parcelas/pkg/installment"
	"github.com/ArionMiles/parcelas/pkg/ledger"
)

// runServe starts the API and blocks until SIGINT/SIGTERM.
func runServe(registry *plugins.Registry, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := registry.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}()

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}

	svc := ledger.New(store, logger.With("component", "ledger"),
		ledger.WithPolicy(installment.Policy{ShrinkOnEdit: cfg.ShrinkOnEdit}),
	)
	srv := server.New(svc, issuer, server.Config{
		Addr:           cfg.HTTPAddr,
		AllowedOrigins: cfg.Origins(),
		RateLimit:      cfg.RateLimit,
	}, logger.With("component", "http"))

	logger.Info("starting parcelas",
		"store", cfg.Store,
		"addr", cfg.HTTPAddr,
		"shrink_on_edit", cfg.ShrinkOnEdit,
	)

	// Run returns once the signal context is done and the server drained.
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("parcelas stopped")
	return nil
}

// runMigrate applies the configured store's migrations.
func runMigrate(registry *plugins.Registry, logger *slog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plugin, err := registry.GetStore(cfg.Store)
	if err != nil {
		return err
	}
	if err := plugin.Migrate(context.Background(), cfg, logger); err != nil {
		return fmt.Errorf("migrating %s store: %w", cfg.Store, err)
	}
	fmt.Printf("Migrations applied (%s)\n", cfg.Store)
	return nil
}
