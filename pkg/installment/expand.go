// Package installment splits charges into dated monthly installments and
// reconciles an edited charge against the installments already stored.
//
// Installment k of a charge due on D is due on D plus k-1 calendar months,
// with the day clamped to the end of shorter months (see calendar.AddMonths).
package installment

import (
	"fmt"

	"github.com/ArionMiles/parcelas/pkg/api"
)

// Expand turns a draft into its N installment records, ordered by index.
// Owner and charge ids are stamped on every record; ids are left for the
// store to assign.
func Expand(ownerID, chargeID string, draft api.ChargeDraft) ([]api.Installment, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if err := checkSpan(draft, 1, draft.Installments, 1); err != nil {
		return nil, err
	}

	records := make([]api.Installment, 0, draft.Installments)
	for k := 1; k <= draft.Installments; k++ {
		records = append(records, api.Installment{
			OwnerID:  ownerID,
			ChargeID: chargeID,
		}.WithFields(fieldsAt(draft, k, 1)))
	}
	return records, nil
}

// fieldsAt returns the fields of installment k when the draft's due date is
// the due date of installment anchor.
func fieldsAt(draft api.ChargeDraft, k, anchor int) api.InstallmentFields {
	return api.InstallmentFields{
		Category:    draft.Category,
		Description: draft.Description,
		Amount:      draft.Amount,
		Instrument:  draft.Instrument,
		DueDate:     draft.DueDate.AddMonths(k - anchor),
		Index:       k,
		Total:       draft.Installments,
	}
}

// checkSpan makes sure installments first..last, dated relative to anchor,
// all fall on valid calendar dates. Due dates are monotonic in the index, so
// checking both ends covers the range.
func checkSpan(draft api.ChargeDraft, first, last, anchor int) error {
	for _, k := range []int{first, last} {
		if due := draft.DueDate.AddMonths(k - anchor); !due.Valid() {
			return fmt.Errorf("%w: installment %d would fall due outside the calendar (%04d-%02d)",
				api.ErrInvalidDate, k, due.Year, int(due.Month))
		}
	}
	return nil
}
