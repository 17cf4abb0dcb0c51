// Package pipeline streams an owner's installment records into an export writer.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/ArionMiles/parcelas/internal/plugins"
	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/report"
)

// channelSize bounds how far the reader may run ahead of the writer.
const channelSize = 100

// Job describes one export.
type Job struct {
	OwnerID      string
	Writer       string
	WriterConfig json.RawMessage
	Filter       report.Filter
}

// Runner connects a store snapshot to a writer plugin.
type Runner struct {
	registry   *plugins.Registry
	store      api.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new export runner. httpClient may be nil when no writer
// needing OAuth is used.
func New(registry *plugins.Registry, store api.Store, httpClient *http.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry:   registry,
		store:      store,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Run exports the owner's records matching job.Filter and returns how many
// were handed to the writer.
func (r *Runner) Run(ctx context.Context, job Job) (int, error) {
	if job.OwnerID == "" {
		return 0, errors.New("export needs an owner")
	}
	if job.Writer == "" {
		return 0, errors.New("export needs a writer")
	}

	records, err := r.store.ListInstallments(ctx, job.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("listing installments: %w", err)
	}
	records = job.Filter.Apply(records)

	writer, err := r.registry.CreateWriter(
		ctx,
		job.Writer,
		r.httpClient,
		job.WriterConfig,
		r.logger.With("component", "writer", "plugin", job.Writer),
	)
	if err != nil {
		return 0, fmt.Errorf("creating writer: %w", err)
	}

	r.logger.Info("starting export", "owner_id", job.OwnerID, "writer", job.Writer, "count", len(records))

	sent, err := stream(ctx, records, writer)
	if err != nil {
		return sent, fmt.Errorf("exporting to %s: %w", job.Writer, err)
	}

	r.logger.Info("export finished", "owner_id", job.OwnerID, "writer", job.Writer, "count", sent)
	return sent, nil
}

// stream feeds records to w over a channel. The channel is closed once every
// record is sent so the writer flushes its final batch.
func stream(ctx context.Context, records []api.Installment, w api.Writer) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	in := make(chan *api.Installment, channelSize)

	sent := 0
	g.Go(func() error {
		defer close(in)
		for i := range records {
			select {
			case in <- &records[i]:
				sent++
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		return w.Write(gctx, in)
	})

	err := g.Wait()
	return sent, err
}
