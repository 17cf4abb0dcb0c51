package calendar

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		date Date
		n    int
		want Date
	}{
		{"same day next month", New(2025, time.March, 15), 1, New(2025, time.April, 15)},
		{"clamp to february non-leap", New(2025, time.January, 31), 1, New(2025, time.February, 28)},
		{"clamp to february leap", New(2024, time.January, 31), 1, New(2024, time.February, 29)},
		{"clamp to 30-day month", New(2025, time.March, 31), 1, New(2025, time.April, 30)},
		{"no drift after clamp", New(2025, time.January, 31), 2, New(2025, time.March, 31)},
		{"year rollover", New(2025, time.November, 30), 3, New(2026, time.February, 28)},
		{"zero offset", New(2025, time.June, 10), 0, New(2025, time.June, 10)},
		{"negative offset", New(2025, time.March, 31), -1, New(2025, time.February, 28)},
		{"negative across year", New(2025, time.January, 15), -2, New(2024, time.November, 15)},
		{"twelve months", New(2024, time.February, 29), 12, New(2025, time.February, 28)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.date.AddMonths(tc.n)
			if got != tc.want {
				t.Errorf("%s.AddMonths(%d) = %s, want %s", tc.date, tc.n, got, tc.want)
			}
		})
	}
}

func TestAddMonthsLeavesCalendar(t *testing.T) {
	before := New(1, time.February, 28).AddMonths(-2)
	if before != (Date{Year: 0, Month: time.December, Day: 28}) || before.Valid() {
		t.Errorf("1-02-28 minus 2 months = %+v, want invalid 0000-12-28", before)
	}
	after := New(9999, time.December, 31).AddMonths(1)
	if after != (Date{Year: 10000, Month: time.January, Day: 31}) || after.Valid() {
		t.Errorf("9999-12-31 plus 1 month = %+v, want invalid 10000-01-31", after)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		date Date
		want bool
	}{
		{New(2025, time.February, 28), true},
		{New(2024, time.February, 29), true},
		{New(2025, time.February, 29), false},
		{New(2025, time.April, 31), false},
		{New(2025, time.Month(13), 1), false},
		{New(2025, time.January, 0), false},
		{Date{}, false},
	}

	for _, tc := range tests {
		if got := tc.date.Valid(); got != tc.want {
			t.Errorf("%s.Valid() = %v, want %v", tc.date, got, tc.want)
		}
		err := tc.date.Validate()
		if tc.want && err != nil {
			t.Errorf("%s.Validate() = %v, want nil", tc.date, err)
		}
		if !tc.want && !errors.Is(err, ErrInvalid) {
			t.Errorf("%s.Validate() = %v, want ErrInvalid", tc.date, err)
		}
	}
}

func TestParse(t *testing.T) {
	d, err := Parse("2025-03-31")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d != New(2025, time.March, 31) {
		t.Errorf("Parse = %s", d)
	}

	for _, bad := range []string{"2025-02-30", "31/03/2025", "2025-3-1", "", "tomorrow"} {
		if _, err := Parse(bad); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalid", bad, err)
		}
	}
}

func TestCompareAndDisplay(t *testing.T) {
	a := New(2025, time.March, 31)
	b := New(2025, time.April, 1)

	if !a.Before(b) || !b.After(a) || a.Compare(a) != 0 {
		t.Errorf("ordering broken for %s and %s", a, b)
	}
	if got := a.Display(); got != "31/03/2025" {
		t.Errorf("Display = %q", got)
	}
	if got := a.DaysUntil(b); got != 1 {
		t.Errorf("DaysUntil = %d, want 1", got)
	}
	if got := a.MonthOf().String(); got != "2025-03" {
		t.Errorf("MonthOf = %q", got)
	}
	if got := New(2025, time.December, 5).MonthOf().Next(); got != (Month{Year: 2026, Month: time.January}) {
		t.Errorf("Next = %s", got)
	}
}

func TestDateJSON(t *testing.T) {
	type payload struct {
		Due Date `json:"due"`
	}

	data, err := json.Marshal(payload{Due: New(2025, time.May, 31)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"due":"2025-05-31"}` {
		t.Errorf("Marshal = %s", data)
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"due":"2025-02-30"}`), &p); err == nil {
		t.Error("expected error for impossible date")
	}
}
