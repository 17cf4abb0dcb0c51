// Package postgres provides a plugin wrapper for the PostgreSQL store.
package postgres

import (
	"context"
	"log/slog"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/config"
	pgstore "github.com/ArionMiles/parcelas/pkg/store/postgres"
)

// Plugin implements the StorePlugin interface for PostgreSQL.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return config.StorePostgres
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Store installments in a PostgreSQL database"
}

// StoreConfig maps the environment settings onto the store's connection config.
func StoreConfig(cfg config.Config) pgstore.Config {
	return pgstore.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		DSN:      cfg.Postgres.URL,
	}
}

// NewStore connects to PostgreSQL.
func (p *Plugin) NewStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.Gateway, error) {
	return pgstore.New(ctx, StoreConfig(cfg), logger)
}

// Migrate applies pending migrations.
func (p *Plugin) Migrate(_ context.Context, cfg config.Config, logger *slog.Logger) error {
	return pgstore.Migrate(StoreConfig(cfg).ConnString(), logger)
}
