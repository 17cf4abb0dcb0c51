package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ArionMiles/parcelas/internal/plugins"
	"github.com/ArionMiles/parcelas/pkg/client"
	"github.com/ArionMiles/parcelas/pkg/config"
)

// runSetup handles the OAuth setup flow for the Sheets exporter.
func runSetup(registry *plugins.Registry, logger *slog.Logger, force bool) error {
	fmt.Println("=== Parcelas Setup ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.ClientSecretFile); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", cfg.ClientSecretFile, cfg.ClientSecretFile)
	}

	if !force && client.HasToken(cfg.TokenFile) {
		fmt.Printf("Already authenticated! Token file exists: %s\n", cfg.TokenFile)
		fmt.Println()
		fmt.Println("To re-authenticate, run: parcelas setup -force")
		return nil
	}

	scopes, err := registry.GetAllScopes("sheets")
	if err != nil {
		return err
	}

	fmt.Println("This will set up OAuth authentication with Google.")
	fmt.Println()
	fmt.Println("Required permissions:")
	fmt.Println("  - Sheets: Read and write spreadsheets (for 'parcelas export -format sheets')")
	fmt.Println()

	err = client.Authorize(context.Background(), client.Config{
		SecretFile: cfg.ClientSecretFile,
		TokenFile:  cfg.TokenFile,
		Scopes:     scopes,
	}, logger)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Println()
	fmt.Printf("Token saved to: %s\n", cfg.TokenFile)
	fmt.Println()
	fmt.Println("Next: parcelas export -email you@example.com -format sheets")
	return nil
}
