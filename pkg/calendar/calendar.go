// Package calendar provides a plain calendar date type and month arithmetic.
//
// Dates carry no time of day and no location. Adding months clamps the day to
// the last day of the target month when the original day does not exist there:
// 2025-01-31 plus one month is 2025-02-28, and 2024-01-31 plus one month is
// 2024-02-29. Each offset is computed from the original date, so repeated
// offsets never drift (the third installment of a charge due on the 31st is
// still due on the 31st when that month has one).
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ISOLayout is the wire format of a Date.
const ISOLayout = "2006-01-02"

// DisplayLayout is the dd/mm/yyyy format used when rendering dates for people.
const DisplayLayout = "02/01/2006"

// ErrInvalid is returned when a value does not name a real calendar date.
var ErrInvalid = errors.New("invalid calendar date")

// Date is a calendar date. The zero value is not a valid date.
//
// A Date may hold an impossible combination such as February 30 so that input
// can be checked with Valid instead of being silently normalised.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New returns the date for the given year, month and day without normalising it.
func New(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// FromTime returns the calendar date of t in t's location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Parse parses an ISO date (YYYY-MM-DD). Impossible dates such as 2025-02-30
// are rejected.
func Parse(s string) (Date, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return FromTime(t), nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Valid reports whether d names a real calendar date.
func (d Date) Valid() bool {
	if d.Year < 1 || d.Year > 9999 {
		return false
	}
	if d.Month < time.January || d.Month > time.December {
		return false
	}
	return d.Day >= 1 && d.Day <= DaysIn(d.Year, d.Month)
}

// Validate returns ErrInvalid when d is not a real calendar date.
func (d Date) Validate() error {
	if !d.Valid() {
		return fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalid, d.Year, int(d.Month), d.Day)
	}
	return nil
}

// AddMonths returns d shifted by n calendar months (n may be negative). The
// day is clamped to the last day of the resulting month.
func (d Date) AddMonths(n int) Date {
	// Zero-based month count, floored so results before year 1 stay
	// well-formed (and fail Valid).
	total := d.Year*12 + int(d.Month-1) + n
	year, rem := total/12, total%12
	if rem < 0 {
		year--
		rem += 12
	}
	month := time.Month(rem + 1)

	day := d.Day
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return Date{Year: year, Month: month, Day: day}
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or
// after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

// Before reports whether d is before other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is after other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// DaysUntil returns the number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// MonthOf returns the month d falls in.
func (d Date) MonthOf() Month {
	return Month{Year: d.Year, Month: d.Month}
}

// String returns d in ISO format.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Display returns d formatted as dd/mm/yyyy.
func (d Date) Display() string {
	return d.Time().Format(DisplayLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// First returns the first day of m.
func (m Month) First() Date {
	return Date{Year: m.Year, Month: m.Month, Day: 1}
}

// Next returns the month after m.
func (m Month) Next() Month {
	next := m.First().AddMonths(1)
	return Month{Year: next.Year, Month: next.Month}
}

// Compare orders months chronologically.
func (m Month) Compare(other Month) int {
	return m.First().Compare(other.First())
}

// String returns m as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MarshalText implements encoding.TextMarshaler.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
