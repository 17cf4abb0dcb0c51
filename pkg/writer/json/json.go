// Package json implements a Writer that exports installments to a JSON file.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/writer/buffered"
)

// Writer writes installments to a JSON file with buffered batching.
type Writer struct {
	filePath string
	records  []*api.Installment
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the JSON writer.
type Config struct {
	// FilePath is the path to the JSON output file. An existing file is replaced.
	FilePath string
	// BatchSize is the number of records to buffer before writing.
	BatchSize int
}

// New creates a new JSON writer.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("json writer needs a file path")
	}

	w := &Writer{
		filePath: cfg.FilePath,
		records:  make([]*api.Installment, 0),
		logger:   logger,
	}
	w.buffered = buffered.New(w.flushBatch, buffered.Config{BatchSize: cfg.BatchSize}, logger.With("component", "json_buffer"))

	logger.Info("json writer initialized", "file", cfg.FilePath)
	return w, nil
}

// Write consumes installments from the input channel and writes them to JSON.
// An empty snapshot still produces a file holding an empty array.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Installment) error {
	if err := w.buffered.Write(ctx, in); err != nil {
		return err
	}
	if w.Count() == 0 {
		return w.flushBatch(nil)
	}
	return nil
}

// flushBatch appends a batch of installments and rewrites the JSON file.
func (w *Writer) flushBatch(records []*api.Installment) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.records = append(w.records, records...)

	// JSON arrays cannot be appended to, so the whole file is rewritten.
	data, err := json.MarshalIndent(w.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	if err := os.WriteFile(w.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}

	w.logger.Debug("wrote installments to json",
		"batch_count", len(records),
		"total_count", len(w.records),
	)
	return nil
}

// Count returns the total number of installments written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}
