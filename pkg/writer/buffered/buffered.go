// Package buffered provides a buffered writer base for batch writes.
package buffered

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ArionMiles/parcelas/pkg/api"
)

// DefaultBatchSize is the default number of records to buffer before flushing.
const DefaultBatchSize = 50

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 30 * time.Second

// Flusher is called when the buffer needs to be flushed.
type Flusher func(records []*api.Installment) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize is the number of records to buffer before flushing.
	// Defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
}

// Writer buffers records and flushes them in batches.
type Writer struct {
	buffer  []*api.Installment
	mu      sync.Mutex
	flusher Flusher
	config  Config
	logger  *slog.Logger
	flushed int
}

// New creates a new buffered writer with the given flusher function.
func New(flusher Flusher, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		buffer:  make([]*api.Installment, 0, cfg.BatchSize),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes records from the input channel and buffers them for batch
// writes. It returns once the channel is closed and the buffer is flushed, or
// with the context's error after a final flush on cancellation.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Installment) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Debug("buffered writer started",
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			return w.handleShutdown(ctx)
		case <-ticker.C:
			if err := w.flush(); err != nil {
				return err
			}
		case rec, ok := <-in:
			if !ok {
				return w.flush()
			}
			if err := w.add(rec); err != nil {
				return err
			}
		}
	}
}

func (w *Writer) handleShutdown(ctx context.Context) error {
	w.logger.Info("buffered writer stopping, flushing remaining buffer")
	if err := w.flush(); err != nil {
		w.logger.Error("failed to flush on shutdown", "error", err)
	}
	return ctx.Err()
}

func (w *Writer) add(rec *api.Installment) error {
	w.mu.Lock()
	w.buffer = append(w.buffer, rec)
	full := len(w.buffer) >= w.config.BatchSize
	w.mu.Unlock()

	if full {
		return w.flush()
	}
	return nil
}

// flush writes all buffered records using the flusher function.
func (w *Writer) flush() error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}

	toFlush := make([]*api.Installment, len(w.buffer))
	copy(toFlush, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	if err := w.flusher(toFlush); err != nil {
		return err
	}

	w.mu.Lock()
	w.flushed += len(toFlush)
	w.mu.Unlock()

	w.logger.Debug("flushed records", "count", len(toFlush))
	return nil
}

// BufferLen returns the current number of buffered records.
func (w *Writer) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// Flushed returns how many records have been handed to the flusher.
func (w *Writer) Flushed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushed
}
