package installment

import (
	"fmt"
	"slices"

	"github.com/ArionMiles/parcelas/pkg/api"
)

// Policy tunes how an edit converges the stored installments.
type Policy struct {
	// ShrinkOnEdit deletes the installments above a reduced count. When
	// false (the default), lowering the count leaves the trailing records in
	// place and only rewrites their fields.
	ShrinkOnEdit bool
}

// Reconcile computes the store operations that bring the installments of one
// charge in line with an edited draft.
//
// existing holds every stored record of the charge; anchor is the index of
// the record the user edited, and the draft's due date becomes that record's
// due date. Every record gets the draft's shared fields and a due date offset
// from the anchor by its own index. When the count grows, indices above the
// anchor's previous total are created; a gap left by a deleted record at or
// below that total stays a gap. Records whose stored state already matches produce no
// operation. Operations are returned in index order.
func Reconcile(existing []api.Installment, draft api.ChargeDraft, anchor int, policy Policy) ([]api.Operation, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	sorted := slices.Clone(existing)
	slices.SortStableFunc(sorted, func(a, b api.Installment) int { return a.Index - b.Index })

	anchorIdx := slices.IndexFunc(sorted, func(r api.Installment) bool { return r.Index == anchor })
	if anchorIdx < 0 {
		return nil, fmt.Errorf("%w: no installment %d in charge", api.ErrRecordNotFound, anchor)
	}
	template := sorted[anchorIdx]

	// Lowest and highest index that will be written.
	first, last := sorted[0].Index, max(sorted[len(sorted)-1].Index, draft.Installments)
	if policy.ShrinkOnEdit {
		last = draft.Installments
	}
	if err := checkSpan(draft, first, last, anchor); err != nil {
		return nil, err
	}

	ops := make([]api.Operation, 0, max(len(sorted), draft.Installments))
	present := make(map[int]bool, len(sorted))
	for _, rec := range sorted {
		present[rec.Index] = true

		if policy.ShrinkOnEdit && rec.Index > draft.Installments {
			ops = append(ops, api.Operation{Kind: api.OpDelete, ID: rec.ID, Fields: rec.Fields()})
			continue
		}

		want := fieldsAt(draft, rec.Index, anchor)
		if want.Equal(rec.Fields()) {
			continue
		}
		ops = append(ops, api.Operation{Kind: api.OpUpdate, ID: rec.ID, Fields: want})
	}

	for k := template.Total + 1; k <= draft.Installments; k++ {
		if present[k] {
			continue
		}
		rec := api.Installment{
			OwnerID:  template.OwnerID,
			ChargeID: template.ChargeID,
		}.WithFields(fieldsAt(draft, k, anchor))
		ops = append(ops, api.Operation{Kind: api.OpCreate, Fields: rec.Fields(), Record: &rec})
	}

	slices.SortStableFunc(ops, func(a, b api.Operation) int { return a.Index() - b.Index() })
	return ops, nil
}
