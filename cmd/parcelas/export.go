package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ArionMiles/parcelas/internal/pipeline"
	"github.com/ArionMiles/parcelas/internal/plugins"
	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/client"
	"github.com/ArionMiles/parcelas/pkg/config"
	"github.com/ArionMiles/parcelas/pkg/report"
)

type exportOptions struct {
	Email    string
	Format   string
	Out      string
	Category string
}

// runExport writes one user's installments through a writer plugin.
func runExport(registry *plugins.Registry, logger *slog.Logger, opts exportOptions) error {
	if opts.Email == "" {
		return errors.New("-email is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	writerCfg, err := writerConfig(cfg, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := registry.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	user, err := store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(opts.Email)))
	if errors.Is(err, api.ErrRecordNotFound) {
		return fmt.Errorf("no user registered with %s", opts.Email)
	}
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}

	httpClient, err := exportClient(ctx, registry, cfg, opts.Format, logger)
	if err != nil {
		return err
	}

	runner := pipeline.New(registry, store, httpClient, logger.With("component", "pipeline"))
	n, err := runner.Run(ctx, pipeline.Job{
		OwnerID:      user.ID,
		Writer:       opts.Format,
		WriterConfig: writerCfg,
		Filter:       report.Filter{Category: opts.Category},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d installments of %s (%s)\n", n, user.Email, opts.Format)
	return nil
}

// writerConfig builds the plugin config for the chosen format.
func writerConfig(cfg config.Config, opts exportOptions) (json.RawMessage, error) {
	var raw map[string]any
	switch opts.Format {
	case "csv", "json":
		out := opts.Out
		if out == "" {
			out = "parcelas." + opts.Format
		}
		raw = map[string]any{"filePath": out}
	case "sheets":
		title := cfg.Sheets.Title
		if title == "" && cfg.Sheets.ID == "" {
			title = "Parcelas"
		}
		raw = map[string]any{
			"spreadsheetId": cfg.Sheets.ID,
			"title":         title,
			"tab":           cfg.Sheets.Name,
		}
	default:
		return nil, fmt.Errorf("unknown format %q (want csv, json or sheets)", opts.Format)
	}
	return json.Marshal(raw)
}

// exportClient returns an OAuth client when the writer needs one.
func exportClient(ctx context.Context, registry *plugins.Registry, cfg config.Config, format string, logger *slog.Logger) (*http.Client, error) {
	scopes, err := registry.GetAllScopes(format)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, nil
	}
	httpClient, err := client.New(ctx, client.Config{
		SecretFile: cfg.ClientSecretFile,
		TokenFile:  cfg.TokenFile,
		Scopes:     scopes,
	}, logger.With("component", "oauth"))
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}
	return httpClient, nil
}
