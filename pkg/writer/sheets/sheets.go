// Package sheets exports installments to a tab of a Google spreadsheet.
//
// Each export replaces the tab's contents: the tab is created when missing,
// cleared, given a header row and then filled in batches.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/writer/buffered"
)

const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 30 * time.Second
	DefaultTab           = "Parcelas"
	DefaultRetryDelay    = 20 * time.Second

	callTimeout = 2 * time.Minute
	lastColumn  = "G"
)

// Header is the first row of the tab.
var Header = []any{"Vencimento", "Tipo", "Descrição", "Valor", "Parcela", "Cartão", "ID"}

// Config selects the spreadsheet and tab.
type Config struct {
	// SpreadsheetID is an existing spreadsheet. When empty a new one titled
	// Title is created.
	SpreadsheetID string
	Title         string
	// Tab is the sheet inside the spreadsheet. Defaults to DefaultTab.
	Tab string

	BatchSize     int
	FlushInterval time.Duration
	// RetryDelay is the base backoff after a rate limit or server error.
	RetryDelay time.Duration
}

// Writer appends installment rows to one tab.
type Writer struct {
	svc           *sheets.Service
	spreadsheetID string
	tab           string
	retryDelay    time.Duration
	logger        *slog.Logger
	buffered      *buffered.Writer
	rows          int
}

// New opens (or creates) the spreadsheet and resets the tab so the export
// starts from an empty sheet with a header.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SpreadsheetID == "" && cfg.Title == "" {
		return nil, errors.New("a spreadsheet id or a title is required")
	}
	if cfg.Tab == "" {
		cfg.Tab = DefaultTab
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	w := &Writer{
		svc:        svc,
		tab:        cfg.Tab,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
	spreadsheet, err := w.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	w.spreadsheetID = spreadsheet.SpreadsheetId

	if err := w.ensureTab(ctx, spreadsheet); err != nil {
		return nil, err
	}
	if err := w.reset(ctx); err != nil {
		return nil, err
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "sheets_buffer"))

	logger.Info("sheets export ready",
		"spreadsheet_id", w.spreadsheetID,
		"tab", w.tab,
		"batch_size", cfg.BatchSize,
	)
	return w, nil
}

// open fetches the configured spreadsheet. A missing id is only replaced by a
// new spreadsheet when a title was given as well.
func (w *Writer) open(ctx context.Context, cfg Config) (*sheets.Spreadsheet, error) {
	if cfg.SpreadsheetID != "" {
		spreadsheet, err := w.svc.Spreadsheets.Get(cfg.SpreadsheetID).Context(ctx).Do()
		if err == nil {
			return spreadsheet, nil
		}
		if !isNotFound(err) || cfg.Title == "" {
			return nil, fmt.Errorf("opening spreadsheet %s: %w", cfg.SpreadsheetID, err)
		}
		w.logger.Warn("spreadsheet not found, creating a new one", "id", cfg.SpreadsheetID)
	}

	spreadsheet, err := w.svc.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: cfg.Title, Locale: "pt_BR"},
		Sheets:     []*sheets.Sheet{{Properties: &sheets.SheetProperties{Title: w.tab}}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating spreadsheet %q: %w", cfg.Title, err)
	}
	w.logger.Info("created spreadsheet", "title", cfg.Title, "id", spreadsheet.SpreadsheetId)
	return spreadsheet, nil
}

func (w *Writer) ensureTab(ctx context.Context, spreadsheet *sheets.Spreadsheet) error {
	if hasTab(spreadsheet, w.tab) {
		return nil
	}
	_, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: w.tab}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("adding tab %q: %w", w.tab, err)
	}
	w.logger.Info("added tab", "tab", w.tab)
	return nil
}

// reset clears the previous export and writes the header row.
func (w *Writer) reset(ctx context.Context) error {
	_, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, a1(w.tab, "A:"+lastColumn), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing tab %q: %w", w.tab, err)
	}
	_, err = w.svc.Spreadsheets.Values.Update(w.spreadsheetID, a1(w.tab, "A1:"+lastColumn+"1"), &sheets.ValueRange{
		Values: [][]any{Header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

// Write consumes installments until in is closed and appends them to the tab.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Installment) error {
	return w.buffered.Write(ctx, in)
}

// Row renders one installment as a row matching Header. Dates use dd/mm/yyyy
// so USER_ENTERED input parses them as dates in a pt-BR spreadsheet.
func Row(rec *api.Installment) []any {
	return []any{
		rec.DueDate.Display(),
		rec.Category,
		rec.Description,
		rec.Amount.StringFixed(2),
		rec.Position(),
		rec.Instrument,
		rec.ID,
	}
}

func (w *Writer) flushBatch(records []*api.Installment) error {
	if len(records) == 0 {
		return nil
	}
	values := make([][]any, 0, len(records))
	for _, rec := range records {
		values = append(values, Row(rec))
	}

	// buffered.Writer flushes after its own context is done, so each call
	// gets a fresh deadline.
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	err := retry.Do(
		func() error {
			_, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, a1(w.tab, "A1"), &sheets.ValueRange{Values: values}).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(Retryable),
		retry.OnRetry(func(n uint, err error) {
			w.logger.Warn("sheets append failed, retrying", "attempt", n+1, "error", err)
		}),
		retry.Attempts(3),
		retry.Delay(w.retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("appending %d rows: %w", len(records), err)
	}

	w.rows += len(records)
	w.logger.Debug("appended rows", "count", len(records), "total", w.rows)
	return nil
}

// SpreadsheetID returns the spreadsheet being written to.
func (w *Writer) SpreadsheetID() string {
	return w.spreadsheetID
}

// Rows returns how many installment rows have been appended so far.
func (w *Writer) Rows() int {
	return w.rows
}

// Retryable reports whether a Sheets API error is worth another attempt:
// rate limits and server-side failures.
func Retryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func hasTab(spreadsheet *sheets.Spreadsheet, tab string) bool {
	for _, s := range spreadsheet.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return true
		}
	}
	return false
}

// a1 builds an A1 range on tab, quoting the tab name as the API requires.
func a1(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}
