// Package plugins provides a registry for store backends and export writers.
package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/config"
	"github.com/ArionMiles/parcelas/pkg/store/retrying"
)

// StorePlugin opens a record store backend.
type StorePlugin interface {
	// Name returns the backend name (e.g., "postgres", "sqlite").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// NewStore opens the backend, applying migrations where it has any.
	NewStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.Gateway, error)
	// Migrate applies pending migrations without keeping a connection open.
	Migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error
}

// WriterPlugin defines the interface for export writer plugins.
type WriterPlugin interface {
	// Name returns the plugin name (e.g., "sheets", "csv", "json").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// ConfigSchema returns a JSON schema describing the plugin's configuration.
	ConfigSchema() map[string]any
	// NewWriter creates a new writer instance with the given config.
	NewWriter(ctx context.Context, httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Writer, error)
}

// Registry manages available store and writer plugins.
type Registry struct {
	stores  map[string]StorePlugin
	writers map[string]WriterPlugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		stores:  make(map[string]StorePlugin),
		writers: make(map[string]WriterPlugin),
	}
}

// RegisterStore registers a store plugin.
func (r *Registry) RegisterStore(plugin StorePlugin) error {
	name := plugin.Name()
	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("store plugin %q already registered", name)
	}
	r.stores[name] = plugin
	return nil
}

// RegisterWriter registers a writer plugin.
func (r *Registry) RegisterWriter(plugin WriterPlugin) error {
	name := plugin.Name()
	if _, exists := r.writers[name]; exists {
		return fmt.Errorf("writer plugin %q already registered", name)
	}
	r.writers[name] = plugin
	return nil
}

// GetStore returns a store plugin by name.
func (r *Registry) GetStore(name string) (StorePlugin, error) {
	plugin, exists := r.stores[name]
	if !exists {
		return nil, fmt.Errorf("store plugin %q not found", name)
	}
	return plugin, nil
}

// GetWriter returns a writer plugin by name.
func (r *Registry) GetWriter(name string) (WriterPlugin, error) {
	plugin, exists := r.writers[name]
	if !exists {
		return nil, fmt.Errorf("writer plugin %q not found", name)
	}
	return plugin, nil
}

// ListStores returns all registered store plugins sorted by name.
func (r *Registry) ListStores() []StorePlugin {
	plugins := make([]StorePlugin, 0, len(r.stores))
	for _, plugin := range r.stores {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// ListWriters returns all registered writer plugins sorted by name.
func (r *Registry) ListWriters() []WriterPlugin {
	plugins := make([]WriterPlugin, 0, len(r.writers))
	for _, plugin := range r.writers {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// GetAllScopes returns the deduplicated OAuth scopes required by the named writers.
func (r *Registry) GetAllScopes(writerNames ...string) ([]string, error) {
	var scopes []string
	for _, name := range writerNames {
		writer, err := r.GetWriter(name)
		if err != nil {
			return nil, err
		}
		for _, scope := range writer.RequiredScopes() {
			if !slices.Contains(scopes, scope) {
				scopes = append(scopes, scope)
			}
		}
	}
	return scopes, nil
}

// OpenStore opens the configured backend and wraps it so transient failures
// are retried.
func (r *Registry) OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	plugin, err := r.GetStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	store, err := plugin.NewStore(ctx, cfg, logger.With("component", "store", "plugin", cfg.Store))
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store, err)
	}
	return retrying.New(store, retrying.Config{
		Attempts: cfg.StoreRetries,
		Delay:    cfg.StoreRetryDelay,
	}, logger.With("component", "retrying_store")), nil
}

// CreateWriter creates a writer instance from a plugin.
func (r *Registry) CreateWriter(ctx context.Context, name string, httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Writer, error) {
	plugin, err := r.GetWriter(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewWriter(ctx, httpClient, config, logger)
}
