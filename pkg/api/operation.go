package api

import "fmt"

// OpKind tags a store operation produced by reconciliation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Operation is one store write needed to converge a charge to its edited state.
//
// Create carries the full record to insert (ID empty). Update carries the
// target ID and the rewritten fields. Delete only carries the target ID and is
// emitted solely when shrinking on edit is enabled.
type Operation struct {
	Kind   OpKind            `json:"kind"`
	ID     string            `json:"id,omitempty"`
	Fields InstallmentFields `json:"fields"`
	Record *Installment      `json:"record,omitempty"`
}

// Index returns the installment index the operation applies to.
func (o Operation) Index() int {
	if o.Record != nil {
		return o.Record.Index
	}
	return o.Fields.Index
}

func (o Operation) String() string {
	switch o.Kind {
	case OpCreate:
		return fmt.Sprintf("create #%d due %s", o.Index(), o.Fields.DueDate)
	case OpUpdate:
		return fmt.Sprintf("update %s #%d due %s", o.ID, o.Index(), o.Fields.DueDate)
	default:
		return fmt.Sprintf("%s %s #%d", o.Kind, o.ID, o.Index())
	}
}
