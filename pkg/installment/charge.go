package installment

import (
	"slices"

	"github.com/ArionMiles/parcelas/pkg/api"
)

// Siblings returns the records of the charge that anchor belongs to, anchor
// included, ordered by index.
//
// Records stamped with a charge id are grouped by it. Older records without
// one are grouped by matching category, description, instrument, amount and
// installment count; when two candidates share an index, the one due closest
// to the date implied by the anchor wins.
func Siblings(records []api.Installment, anchor api.Installment) []api.Installment {
	byIndex := make(map[int]api.Installment)
	for _, rec := range records {
		if rec.OwnerID != anchor.OwnerID || !sameCharge(rec, anchor) {
			continue
		}
		if rec.ID == anchor.ID {
			byIndex[rec.Index] = rec
			continue
		}
		current, taken := byIndex[rec.Index]
		if taken && (current.ID == anchor.ID || distance(current, anchor) <= distance(rec, anchor)) {
			continue
		}
		byIndex[rec.Index] = rec
	}
	byIndex[anchor.Index] = anchor

	group := make([]api.Installment, 0, len(byIndex))
	for _, rec := range byIndex {
		group = append(group, rec)
	}
	slices.SortFunc(group, func(a, b api.Installment) int { return a.Index - b.Index })
	return group
}

func sameCharge(rec, anchor api.Installment) bool {
	if anchor.ChargeID != "" {
		return rec.ChargeID == anchor.ChargeID
	}
	return rec.ChargeID == "" &&
		rec.Category == anchor.Category &&
		rec.Description == anchor.Description &&
		rec.Instrument == anchor.Instrument &&
		rec.Amount.Equal(anchor.Amount) &&
		rec.Total == anchor.Total
}

// distance is how many days rec is away from where the anchor says it should be.
func distance(rec, anchor api.Installment) int {
	expected := anchor.DueDate.AddMonths(rec.Index - anchor.Index)
	d := expected.DaysUntil(rec.DueDate)
	if d < 0 {
		return -d
	}
	return d
}
