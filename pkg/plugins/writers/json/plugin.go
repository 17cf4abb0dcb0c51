// Package json registers the JSON file exporter.
package json

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/plugins/writers/writerconf"
	"github.com/ArionMiles/parcelas/pkg/writer/buffered"
	jsonwriter "github.com/ArionMiles/parcelas/pkg/writer/json"
)

const name = "json"

var fields = []writerconf.Field{
	{Name: "filePath", Type: "string", Description: "JSON file to write; an existing file is replaced", Required: true},
	{Name: "batchSize", Type: "integer", Description: "Records buffered per write", Default: buffered.DefaultBatchSize},
}

// Config is the plugin's JSON configuration.
type Config struct {
	FilePath  string `json:"filePath"`
	BatchSize int    `json:"batchSize,omitempty"`
}

// Plugin exports installments as one JSON array.
type Plugin struct{}

func (p *Plugin) Name() string                 { return name }
func (p *Plugin) Description() string          { return "Export installments to a JSON file" }
func (p *Plugin) RequiredScopes() []string     { return nil }
func (p *Plugin) ConfigSchema() map[string]any { return writerconf.Schema(fields...) }

// NewWriter prepares the output file. The http client is unused.
func (p *Plugin) NewWriter(_ context.Context, _ *http.Client, data json.RawMessage, logger *slog.Logger) (api.Writer, error) {
	var cfg Config
	if err := writerconf.Decode(name, data, &cfg); err != nil {
		return nil, err
	}
	if err := writerconf.Require(name, "filePath", cfg.FilePath); err != nil {
		return nil, err
	}
	return jsonwriter.New(jsonwriter.Config{FilePath: cfg.FilePath, BatchSize: cfg.BatchSize}, logger)
}
