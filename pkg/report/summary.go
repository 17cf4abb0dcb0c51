package report

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/calendar"
)

// Filter narrows a snapshot the way the dashboard filters do. Empty fields
// match everything; From and To are inclusive.
type Filter struct {
	Category   string
	Instrument string
	From       calendar.Date
	To         calendar.Date
}

// Match reports whether r passes the filter. Category and instrument compare
// case-insensitively.
func (f Filter) Match(r api.Installment) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, r.Category) {
		return false
	}
	if f.Instrument != "" && !strings.EqualFold(f.Instrument, r.Instrument) {
		return false
	}
	if !f.From.IsZero() && r.DueDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.DueDate.After(f.To) {
		return false
	}
	return true
}

// Apply returns the records that pass the filter, preserving order.
func (f Filter) Apply(records []api.Installment) []api.Installment {
	out := make([]api.Installment, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// KeyTotal is one row of a keyed breakdown.
type KeyTotal struct {
	Key    string          `json:"key"`
	Amount decimal.Decimal `json:"amount"`
}

// SortedTotals orders a breakdown by key using Brazilian Portuguese collation,
// so accented names sort next to their plain spelling.
func SortedTotals(sums map[string]decimal.Decimal) []KeyTotal {
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	collate.New(language.BrazilianPortuguese, collate.IgnoreCase).SortStrings(keys)

	rows := make([]KeyTotal, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, KeyTotal{Key: k, Amount: sums[k]})
	}
	return rows
}

// Summary is the dashboard view of a snapshot.
type Summary struct {
	Count            int                  `json:"count"`
	Total            decimal.Decimal      `json:"total"`
	TotalDisplay     string               `json:"total_display"`
	ByCategory       []KeyTotal           `json:"by_category"`
	ByInstrument     []KeyTotal           `json:"by_instrument"`
	Monthly          []MonthCategoryTotal `json:"monthly"`
	InstallmentShare decimal.Decimal      `json:"installment_share"`
	// Upcoming lists records due on or after the reference date, soonest first.
	Upcoming []api.Installment `json:"upcoming,omitempty"`
}

// Summarize builds the dashboard summary. Upcoming holds up to limit records
// due on or after today.
func Summarize(records []api.Installment, today calendar.Date, limit int) Summary {
	total := Total(records)
	s := Summary{
		Count:            len(records),
		Total:            total,
		TotalDisplay:     FormatBRL(total),
		ByCategory:       SortedTotals(ByCategory(records)),
		ByInstrument:     SortedTotals(ByInstrument(records)),
		Monthly:          GroupByMonthAndCategory(records),
		InstallmentShare: InstallmentShare(records).Round(2),
	}

	upcoming := make([]api.Installment, 0, limit)
	for _, r := range records {
		if !r.DueDate.Before(today) {
			upcoming = append(upcoming, r)
		}
	}
	slices.SortStableFunc(upcoming, func(a, b api.Installment) int { return a.DueDate.Compare(b.DueDate) })
	if len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	s.Upcoming = upcoming
	return s
}
