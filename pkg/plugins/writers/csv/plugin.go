// Package csv registers the CSV file exporter.
package csv

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/plugins/writers/writerconf"
	"github.com/ArionMiles/parcelas/pkg/writer/buffered"
	csvwriter "github.com/ArionMiles/parcelas/pkg/writer/csv"
)

const name = "csv"

var fields = []writerconf.Field{
	{Name: "filePath", Type: "string", Description: "CSV file to write; an existing file is replaced", Required: true},
	{Name: "batchSize", Type: "integer", Description: "Rows buffered per write", Default: buffered.DefaultBatchSize},
}

// Config is the plugin's JSON configuration.
type Config struct {
	FilePath  string `json:"filePath"`
	BatchSize int    `json:"batchSize,omitempty"`
}

// Plugin exports installments as CSV rows.
type Plugin struct{}

func (p *Plugin) Name() string                 { return name }
func (p *Plugin) Description() string          { return "Export installments to a CSV file" }
func (p *Plugin) RequiredScopes() []string     { return nil }
func (p *Plugin) ConfigSchema() map[string]any { return writerconf.Schema(fields...) }

// NewWriter opens the output file. The http client is unused.
func (p *Plugin) NewWriter(_ context.Context, _ *http.Client, data json.RawMessage, logger *slog.Logger) (api.Writer, error) {
	var cfg Config
	if err := writerconf.Decode(name, data, &cfg); err != nil {
		return nil, err
	}
	if err := writerconf.Require(name, "filePath", cfg.FilePath); err != nil {
		return nil, err
	}
	return csvwriter.New(csvwriter.Config{FilePath: cfg.FilePath, BatchSize: cfg.BatchSize}, logger)
}
