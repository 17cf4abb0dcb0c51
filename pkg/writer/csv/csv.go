// Package csv implements a Writer that exports installments to a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/writer/buffered"
)

// Header is the first row of every export.
var Header = []string{
	"id", "charge_id", "due_date", "category", "description",
	"instrument", "amount", "installment_index", "total_installments",
}

// Writer writes installments to a CSV file with buffered batching.
type Writer struct {
	filePath string
	file     *os.File
	writer   *csv.Writer
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the CSV writer.
type Config struct {
	// FilePath is the path to the CSV output file. An existing file is replaced.
	FilePath string
	// BatchSize is the number of records to buffer before writing.
	BatchSize int
}

// New creates a new CSV writer and writes the header row.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}

	w := &Writer{
		filePath: cfg.FilePath,
		file:     file,
		writer:   csv.NewWriter(file),
		logger:   logger,
	}

	if err := w.writeRow(Header); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return nil, fmt.Errorf("writing headers: %w (close error: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("writing headers: %w", err)
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{BatchSize: cfg.BatchSize}, logger.With("component", "csv_buffer"))

	logger.Info("csv writer initialized", "file", cfg.FilePath)
	return w, nil
}

func (w *Writer) writeRow(row []string) error {
	if err := w.writer.Write(row); err != nil {
		return err
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Write consumes installments from the input channel and writes them to CSV.
// The file is closed when Write returns.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Installment) error {
	err := w.buffered.Write(ctx, in)
	if closeErr := w.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Record renders one installment as a CSV row matching Header.
func Record(rec *api.Installment) []string {
	return []string{
		rec.ID,
		rec.ChargeID,
		rec.DueDate.String(),
		rec.Category,
		rec.Description,
		rec.Instrument,
		rec.Amount.StringFixed(2),
		strconv.Itoa(rec.Index),
		strconv.Itoa(rec.Total),
	}
}

// flushBatch writes a batch of installments to the CSV file.
func (w *Writer) flushBatch(records []*api.Installment) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rec := range records {
		if err := w.writer.Write(Record(rec)); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	w.logger.Debug("wrote installments to csv", "count", len(records))
	return nil
}

// Close flushes and closes the CSV file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing csv file: %w", err)
	}

	w.logger.Info("csv writer closed", "file", w.filePath)
	return nil
}
