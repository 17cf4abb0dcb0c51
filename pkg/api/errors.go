package api

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDraft is returned for a charge with a bad amount or installment count.
	ErrInvalidDraft = errors.New("invalid draft")
	// ErrInvalidDate is returned for a malformed or impossible calendar date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrRecordNotFound is returned when an edit or delete target does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStoreUnavailable is returned when the store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidAccount is returned for a registration with missing or malformed details.
	ErrInvalidAccount = errors.New("invalid account details")
	// ErrRejected is returned when the store refuses a write as invalid data.
	ErrRejected = errors.New("rejected by store")
	// ErrInvalidCredentials is returned when a login does not match a user.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// PartialWriteError reports a multi-record write that stopped partway. The
// first Applied operations reached the store; nothing is rolled back, so the
// caller has to re-read the store to learn its true state.
type PartialWriteError struct {
	Applied int
	Total   int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("applied %d of %d operations: %v", e.Applied, e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
