// Package sqlite provides a plugin wrapper for the SQLite store.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/config"
	sqlitestore "github.com/ArionMiles/parcelas/pkg/store/sqlite"
)

// Plugin implements the StorePlugin interface for an embedded SQLite file.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return config.StoreSQLite
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Store installments in a local SQLite database file"
}

// NewStore opens the database file named by SQLITE_PATH.
func (p *Plugin) NewStore(_ context.Context, cfg config.Config, logger *slog.Logger) (api.Gateway, error) {
	return sqlitestore.New(sqlitestore.Config{Path: cfg.SQLitePath}, logger)
}

// Migrate applies pending migrations to the database file.
func (p *Plugin) Migrate(_ context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := sqlitestore.Migrate(cfg.SQLitePath); err != nil {
		return fmt.Errorf("migrating %s: %w", cfg.SQLitePath, err)
	}
	if logger != nil {
		logger.Info("sqlite migrations applied", "path", cfg.SQLitePath)
	}
	return nil
}
