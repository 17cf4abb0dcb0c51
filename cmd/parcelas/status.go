package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ArionMiles/parcelas/internal/plugins"
	"github.com/ArionMiles/parcelas/pkg/client"
	"github.com/ArionMiles/parcelas/pkg/config"
	"github.com/ArionMiles/parcelas/pkg/logging"
)

// runStatus checks the configuration and store connectivity.
func runStatus(registry *plugins.Registry) error {
	fmt.Println("=== Parcelas Status ===")
	fmt.Println()

	allGood := true

	cfg, err := config.Load()
	fmt.Print("Configuration: ")
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		printFinalStatus(false)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		fmt.Printf("✓ store=%s addr=%s\n", cfg.Store, cfg.HTTPAddr)
	}

	fmt.Print("JWT secret: ")
	if cfg.JWTSecret == "" {
		fmt.Println("✗ PARCELAS_JWT_SECRET not set ('parcelas serve' will refuse to start)")
		allGood = false
	} else {
		fmt.Println("✓ Set")
	}

	if allGood {
		checkStore(registry, cfg, &allGood)
	}
	checkSheets(cfg)

	printFinalStatus(allGood)
	return nil
}

func checkStore(registry *plugins.Registry, cfg config.Config, allGood *bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Printf("Store (%s): ", cfg.Store)
	store, err := registry.OpenStore(ctx, cfg, logging.Discard())
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Println("✓ Connected")
}

// checkSheets reports the optional Sheets export setup. It never fails the
// overall status since exports to files work without it.
func checkSheets(cfg config.Config) {
	fmt.Println()
	fmt.Println("Sheets export (optional):")

	fmt.Printf("  Credentials file (%s): ", cfg.ClientSecretFile)
	if _, err := os.Stat(cfg.ClientSecretFile); err != nil {
		fmt.Println("✗ Not found")
	} else {
		fmt.Println("✓ Found")
	}

	fmt.Printf("  OAuth token (%s): ", cfg.TokenFile)
	if client.HasToken(cfg.TokenFile) {
		fmt.Println("✓ Found")
	} else {
		fmt.Println("✗ Not found (run 'parcelas setup')")
	}
}

func printFinalStatus(allGood bool) {
	fmt.Println()
	if allGood {
		fmt.Println("Status: ✓ Ready to run")
		fmt.Println()
		fmt.Println("Run 'parcelas serve' to start the API.")
	} else {
		fmt.Println("Status: ✗ Configuration issues detected")
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'parcelas status' again.")
	}
}
