// Package report derives spend summaries from a snapshot of installment
// records. Every function is pure: it reads the slice it is given and never
// touches a store.
package report

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/calendar"
)

var hundred = decimal.NewFromInt(100)

// KeyFunc extracts a grouping key from a record.
type KeyFunc func(api.Installment) string

// CategoryKey groups by category.
func CategoryKey(r api.Installment) string { return r.Category }

// InstrumentKey groups by payment instrument.
func InstrumentKey(r api.Installment) string { return r.Instrument }

// SumInPeriod sums the amounts of records due in [start, end).
func SumInPeriod(records []api.Installment, start, end calendar.Date) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.DueDate.Before(start) || !r.DueDate.Before(end) {
			continue
		}
		total = total.Add(r.Amount)
	}
	return total
}

// Window returns the records due in [from, to). A zero bound leaves that side
// open.
func Window(records []api.Installment, from, to calendar.Date) []api.Installment {
	out := make([]api.Installment, 0, len(records))
	for _, r := range records {
		if !from.IsZero() && r.DueDate.Before(from) {
			continue
		}
		if !to.IsZero() && !r.DueDate.Before(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Total sums every record's amount.
func Total(records []api.Installment) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// GroupBy sums amounts per key. The map carries no order; use SortedTotals
// for display.
func GroupBy(records []api.Installment, key KeyFunc) map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	for _, r := range records {
		k := key(r)
		sums[k] = sums[k].Add(r.Amount)
	}
	return sums
}

// ByCategory sums amounts per category.
func ByCategory(records []api.Installment) map[string]decimal.Decimal {
	return GroupBy(records, CategoryKey)
}

// ByInstrument sums amounts per payment instrument.
func ByInstrument(records []api.Installment) map[string]decimal.Decimal {
	return GroupBy(records, InstrumentKey)
}

// MonthCategoryTotal is the spend of one category within one month.
type MonthCategoryTotal struct {
	Month    calendar.Month  `json:"month"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// GroupByMonthAndCategory sums amounts per (month, category). Rows are in
// chronological order; within a month, categories keep the order in which
// they first appear in records.
func GroupByMonthAndCategory(records []api.Installment) []MonthCategoryTotal {
	type key struct {
		month    calendar.Month
		category string
	}

	firstSeen := make(map[string]int)
	sums := make(map[key]decimal.Decimal)
	var keys []key
	for _, r := range records {
		if _, ok := firstSeen[r.Category]; !ok {
			firstSeen[r.Category] = len(firstSeen)
		}
		k := key{month: r.DueDate.MonthOf(), category: r.Category}
		if _, ok := sums[k]; !ok {
			keys = append(keys, k)
		}
		sums[k] = sums[k].Add(r.Amount)
	}

	slices.SortStableFunc(keys, func(a, b key) int {
		if c := a.month.Compare(b.month); c != 0 {
			return c
		}
		return firstSeen[a.category] - firstSeen[b.category]
	})

	rows := make([]MonthCategoryTotal, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, MonthCategoryTotal{Month: k.month, Category: k.category, Amount: sums[k]})
	}
	return rows
}

// InstallmentShare returns the percentage of spend that belongs to charges
// split in more than one installment. It is zero when there is no spend.
func InstallmentShare(records []api.Installment) decimal.Decimal {
	total := decimal.Zero
	split := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
		if r.IsInstallmentPlan() {
			split = split.Add(r.Amount)
		}
	}
	if total.IsZero() {
		return decimal.Zero
	}
	return split.Div(total).Mul(hundred)
}
