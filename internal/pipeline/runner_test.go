package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/parcelas/internal/plugins"
	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/calendar"
	"github.com/ArionMiles/parcelas/pkg/installment"
	"github.com/ArionMiles/parcelas/pkg/logging"
	"github.com/ArionMiles/parcelas/pkg/report"
	"github.com/ArionMiles/parcelas/pkg/store/memory"
)

type collectingWriter struct {
	got     []*api.Installment
	failAt  int
	failErr error
}

func (w *collectingWriter) Write(_ context.Context, in <-chan *api.Installment) error {
	for rec := range in {
		if w.failErr != nil && len(w.got) == w.failAt {
			return w.failErr
		}
		w.got = append(w.got, rec)
	}
	return nil
}

type collectingPlugin struct{ w *collectingWriter }

func (p *collectingPlugin) Name() string                 { return "collect" }
func (p *collectingPlugin) Description() string          { return "test writer" }
func (p *collectingPlugin) RequiredScopes() []string     { return nil }
func (p *collectingPlugin) ConfigSchema() map[string]any { return nil }
func (p *collectingPlugin) NewWriter(context.Context, *http.Client, json.RawMessage, *slog.Logger) (api.Writer, error) {
	return p.w, nil
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	for _, draft := range []api.ChargeDraft{
		{Category: "Lazer", Description: "Show", Amount: decimal.RequireFromString("120"), DueDate: calendar.New(2025, time.January, 10), Installments: 3, Instrument: "Nubank"},
		{Category: "Moradia", Description: "Aluguel", Amount: decimal.RequireFromString("1500"), DueDate: calendar.New(2025, time.January, 5), Installments: 1},
	} {
		records, err := installment.Expand("owner-1", "", draft)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := store.InsertInstallments(ctx, records); err != nil {
			t.Fatal(err)
		}
	}
	other, _ := installment.Expand("owner-2", "", api.ChargeDraft{
		Category: "Lazer", Amount: decimal.RequireFromString("1"), DueDate: calendar.New(2025, time.January, 1), Installments: 1,
	})
	if _, err := store.InsertInstallments(ctx, other); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRunExportsOwnerRecords(t *testing.T) {
	w := &collectingWriter{}
	registry := plugins.NewRegistry()
	if err := registry.RegisterWriter(&collectingPlugin{w: w}); err != nil {
		t.Fatal(err)
	}

	runner := New(registry, seed(t), nil, logging.Discard())
	n, err := runner.Run(context.Background(), Job{OwnerID: "owner-1", Writer: "collect"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 4 || len(w.got) != 4 {
		t.Fatalf("exported %d (writer saw %d), want 4", n, len(w.got))
	}
	for i := 1; i < len(w.got); i++ {
		if w.got[i].DueDate.Before(w.got[i-1].DueDate) {
			t.Errorf("records out of due-date order at %d", i)
		}
	}
	for _, rec := range w.got {
		if rec.OwnerID != "owner-1" {
			t.Errorf("exported a record of %s", rec.OwnerID)
		}
	}
}

func TestRunAppliesFilter(t *testing.T) {
	w := &collectingWriter{}
	registry := plugins.NewRegistry()
	_ = registry.RegisterWriter(&collectingPlugin{w: w})

	runner := New(registry, seed(t), nil, nil)
	n, err := runner.Run(context.Background(), Job{
		OwnerID: "owner-1",
		Writer:  "collect",
		Filter:  report.Filter{Category: "lazer"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 3 {
		t.Errorf("exported %d, want the 3 Lazer installments", n)
	}
}

func TestRunWriterFailure(t *testing.T) {
	boom := errors.New("disk full")
	registry := plugins.NewRegistry()
	_ = registry.RegisterWriter(&collectingPlugin{w: &collectingWriter{failAt: 1, failErr: boom}})

	runner := New(registry, seed(t), nil, logging.Discard())
	_, err := runner.Run(context.Background(), Job{OwnerID: "owner-1", Writer: "collect"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestRunValidation(t *testing.T) {
	runner := New(plugins.NewRegistry(), memory.New(), nil, logging.Discard())
	ctx := context.Background()

	if _, err := runner.Run(ctx, Job{Writer: "csv"}); err == nil {
		t.Error("job without owner accepted")
	}
	if _, err := runner.Run(ctx, Job{OwnerID: "o"}); err == nil {
		t.Error("job without writer accepted")
	}
	if _, err := runner.Run(ctx, Job{OwnerID: "o", Writer: "nope"}); err == nil {
		t.Error("unknown writer accepted")
	}
}

func TestRunCSVEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parcelas.csv")
	cfg, _ := json.Marshal(map[string]any{"filePath": path, "batchSize": 2})

	runner := New(plugins.Default(), seed(t), nil, logging.Discard())
	n, err := runner.Run(context.Background(), Job{OwnerID: "owner-1", Writer: "csv", WriterConfig: cfg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != n+1 {
		t.Errorf("csv has %d lines, want header + %d", len(lines), n)
	}
}
