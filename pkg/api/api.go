// Package api defines the core interfaces and data structures for parcelas.
package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/parcelas/pkg/calendar"
)

// ChargeDraft is a validated charge as entered by a user, before it is split
// into installments.
type ChargeDraft struct {
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     calendar.Date   `json:"due_date"`
	// Installments is the number of monthly installments (N >= 1).
	Installments int `json:"installments"`
	// Instrument is the payment instrument label (card name), optional.
	Instrument string `json:"instrument,omitempty"`
}

// Limits on a draft. MaxAmount matches the NUMERIC(12,2) amount column, so
// every backend accepts the same drafts.
const MaxInstallments = 600

var MaxAmount = decimal.New(1, 10)

// Validate checks the draft as entered, before any rounding. It returns
// ErrInvalidDraft for a bad count or amount and ErrInvalidDate for a due date
// that is not a real calendar date.
func (d ChargeDraft) Validate() error {
	if d.Installments < 1 || d.Installments > MaxInstallments {
		return fmt.Errorf("%w: installments must be between 1 and %d, got %d", ErrInvalidDraft, MaxInstallments, d.Installments)
	}
	if d.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative, got %s", ErrInvalidDraft, d.Amount)
	}
	if d.Amount.Round(2).GreaterThanOrEqual(MaxAmount) {
		return fmt.Errorf("%w: amount must be below %s, got %s", ErrInvalidDraft, MaxAmount, d.Amount)
	}
	if err := d.DueDate.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDate, err)
	}
	return nil
}

// Normalize trims free-text fields and rounds the amount to cents.
func (d ChargeDraft) Normalize() ChargeDraft {
	d.Category = strings.TrimSpace(d.Category)
	d.Description = strings.TrimSpace(d.Description)
	d.Instrument = strings.TrimSpace(d.Instrument)
	d.Amount = d.Amount.Round(2)
	return d
}

// Installment is one persisted, dated portion of a charge.
type Installment struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	// ChargeID groups the records created together for one charge. Records
	// written before the column existed leave it empty.
	ChargeID    string          `json:"charge_id,omitempty"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Instrument  string          `json:"instrument,omitempty"`
	DueDate     calendar.Date   `json:"due_date"`
	// Index is the 1-based position within the charge.
	Index int `json:"installment_index"`
	// Total is the charge's installment count at the time of the last write.
	Total int `json:"total_installments"`
}

// Fields returns the mutable fields of the record.
func (i Installment) Fields() InstallmentFields {
	return InstallmentFields{
		Category:    i.Category,
		Description: i.Description,
		Amount:      i.Amount,
		Instrument:  i.Instrument,
		DueDate:     i.DueDate,
		Index:       i.Index,
		Total:       i.Total,
	}
}

// WithFields returns a copy of the record with the given fields applied.
func (i Installment) WithFields(f InstallmentFields) Installment {
	i.Category = f.Category
	i.Description = f.Description
	i.Amount = f.Amount
	i.Instrument = f.Instrument
	i.DueDate = f.DueDate
	i.Index = f.Index
	i.Total = f.Total
	return i
}

// Position renders the record's place in its charge, e.g. "2/5".
func (i Installment) Position() string {
	return fmt.Sprintf("%d/%d", i.Index, i.Total)
}

// IsInstallmentPlan reports whether the record belongs to a charge split in
// more than one installment.
func (i Installment) IsInstallmentPlan() bool {
	return i.Total > 1
}

// InstallmentFields are the columns an update may rewrite. Owner and id are
// immutable once a record exists.
type InstallmentFields struct {
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Instrument  string          `json:"instrument,omitempty"`
	DueDate     calendar.Date   `json:"due_date"`
	Index       int             `json:"installment_index"`
	Total       int             `json:"total_installments"`
}

// Equal reports whether two field sets describe the same stored state.
func (f InstallmentFields) Equal(other InstallmentFields) bool {
	return f.Category == other.Category &&
		f.Description == other.Description &&
		f.Amount.Equal(other.Amount) &&
		f.Instrument == other.Instrument &&
		f.DueDate == other.DueDate &&
		f.Index == other.Index &&
		f.Total == other.Total
}

// User is an account holder.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// PasswordDigest is the stored credential digest; never serialised.
	PasswordDigest string `json:"-"`
}

// Session is the per-request identity of the signed-in user. It is built at
// the request boundary and passed explicitly to every ledger operation.
type Session struct {
	UserID string
	Email  string
	Name   string
}

// Store is the gateway to the persistent installment records.
//
// Implementations apply multi-record inserts in input order. Callers must not
// assume a failed insert left nothing behind.
type Store interface {
	// ListInstallments returns the owner's records ordered by due date, then index.
	ListInstallments(ctx context.Context, ownerID string) ([]Installment, error)
	// GetInstallment returns one of the owner's records or ErrRecordNotFound.
	GetInstallment(ctx context.Context, ownerID, id string) (Installment, error)
	// InsertInstallments stores the records and returns their assigned ids in input order.
	InsertInstallments(ctx context.Context, records []Installment) ([]string, error)
	// UpdateInstallment rewrites the mutable fields of a record.
	UpdateInstallment(ctx context.Context, id string, fields InstallmentFields) error
	// DeleteInstallment removes a single record.
	DeleteInstallment(ctx context.Context, id string) error
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the store's resources.
	Close() error
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser stores a new user and returns it with its assigned id.
	// It returns ErrEmailTaken when the email is already registered.
	CreateUser(ctx context.Context, user User) (User, error)
	// UserByEmail returns the user registered with email or ErrRecordNotFound.
	UserByEmail(ctx context.Context, email string) (User, error)
}

// Gateway is a store that also keeps user accounts. Every backend implements it.
type Gateway interface {
	Store
	UserStore
}

// Writer consumes installment records from a channel and writes them to a
// destination (file, spreadsheet).
type Writer interface {
	Write(ctx context.Context, in <-chan *Installment) error
}
