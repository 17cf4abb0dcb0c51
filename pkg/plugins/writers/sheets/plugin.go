// Package sheets registers the Google Sheets exporter.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/plugins/writers/writerconf"
	sheetswriter "github.com/ArionMiles/parcelas/pkg/writer/sheets"
)

const name = "sheets"

var fields = []writerconf.Field{
	{Name: "spreadsheetId", Type: "string", Description: "Existing spreadsheet to export into"},
	{Name: "title", Type: "string", Description: "Title of a new spreadsheet, used when spreadsheetId is empty or not found"},
	{Name: "tab", Type: "string", Description: "Tab to replace with the export", Default: sheetswriter.DefaultTab},
	{Name: "batchSize", Type: "integer", Description: "Rows appended per API call", Default: sheetswriter.DefaultBatchSize},
	{Name: "flushSeconds", Type: "integer", Description: "Seconds between automatic flushes", Default: int(sheetswriter.DefaultFlushInterval / time.Second)},
}

// Config is the plugin's JSON configuration.
type Config struct {
	SpreadsheetID string `json:"spreadsheetId,omitempty"`
	Title         string `json:"title,omitempty"`
	Tab           string `json:"tab,omitempty"`
	BatchSize     int    `json:"batchSize,omitempty"`
	FlushSeconds  int    `json:"flushSeconds,omitempty"`
}

// Plugin exports installments to a spreadsheet tab.
type Plugin struct{}

func (p *Plugin) Name() string                 { return name }
func (p *Plugin) Description() string          { return "Export installments to a Google Sheets tab" }
func (p *Plugin) RequiredScopes() []string     { return []string{sheetsapi.SpreadsheetsScope} }
func (p *Plugin) ConfigSchema() map[string]any { return writerconf.Schema(fields...) }

// NewWriter opens the spreadsheet through the authorized httpClient.
func (p *Plugin) NewWriter(ctx context.Context, httpClient *http.Client, data json.RawMessage, logger *slog.Logger) (api.Writer, error) {
	var cfg Config
	if err := writerconf.Decode(name, data, &cfg); err != nil {
		return nil, err
	}
	if cfg.SpreadsheetID == "" && cfg.Title == "" {
		return nil, errors.New("sheets: spreadsheetId or title is required")
	}
	if httpClient == nil {
		return nil, errors.New("sheets: an authorized http client is required (run 'parcelas setup')")
	}

	return sheetswriter.New(ctx, httpClient, sheetswriter.Config{
		SpreadsheetID: cfg.SpreadsheetID,
		Title:         cfg.Title,
		Tab:           cfg.Tab,
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.FlushSeconds) * time.Second,
	}, logger)
}
