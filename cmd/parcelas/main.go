// Command parcelas runs the installment tracker API and its maintenance tasks.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/ArionMiles/parcelas/internal/plugins"
	"github.com/ArionMiles/parcelas/pkg/config"
	"github.com/ArionMiles/parcelas/pkg/logging"
)

const usage = `parcelas - installment tracker

Usage:
  parcelas <command> [flags]

Commands:
  serve     Start the HTTP API
  migrate   Apply database migrations and exit
  status    Check configuration and store connectivity
  export    Export one user's installments (csv, json, sheets)
  setup     Authorize Google Sheets access for exports

Configuration is read from the environment (and a .env file when present).
Run 'parcelas <command> -h' for command flags.
`

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	logger := logging.Setup(logging.DefaultConfig())

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:], logger); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(command string, args []string, logger *slog.Logger) error {
	registry := plugins.Default()

	switch command {
	case "serve":
		return runServe(registry, logger)
	case "migrate":
		return runMigrate(registry, logger)
	case "status":
		return runStatus(registry)
	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		email := fs.String("email", "", "email of the user whose installments are exported (required)")
		format := fs.String("format", "csv", "output format: csv, json or sheets")
		out := fs.String("out", "", "output file for csv/json (default parcelas.<format>)")
		category := fs.String("category", "", "only export this category")
		_ = fs.Parse(args)
		return runExport(registry, logger, exportOptions{
			Email:    *email,
			Format:   *format,
			Out:      *out,
			Category: *category,
		})
	case "setup":
		fs := flag.NewFlagSet("setup", flag.ExitOnError)
		force := fs.Bool("force", false, "re-authenticate even when a token exists")
		_ = fs.Parse(args)
		return runSetup(registry, logger, *force)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}
