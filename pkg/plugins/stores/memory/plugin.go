// Package memory provides a plugin wrapper for the in-process store.
package memory

import (
	"context"
	"log/slog"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/config"
	memstore "github.com/ArionMiles/parcelas/pkg/store/memory"
)

// Plugin implements the StorePlugin interface for the in-memory store.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return config.StoreMemory
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Keep installments in memory (lost on exit; demos and tests)"
}

// NewStore creates an empty store.
func (p *Plugin) NewStore(_ context.Context, _ config.Config, logger *slog.Logger) (api.Gateway, error) {
	if logger != nil {
		logger.Warn("using the in-memory store; records are lost on exit")
	}
	return memstore.New(), nil
}

// Migrate is a no-op: the memory store has no schema.
func (p *Plugin) Migrate(context.Context, config.Config, *slog.Logger) error {
	return nil
}
