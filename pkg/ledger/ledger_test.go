package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/calendar"
	"github.com/ArionMiles/parcelas/pkg/installment"
	"github.com/ArionMiles/parcelas/pkg/report"
	"github.com/ArionMiles/parcelas/pkg/store/memory"
)

var alice = api.Session{UserID: "user-a", Email: "alice@example.com", Name: "Alice"}

func newService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, logger, opts...), store
}

func internetDraft() api.ChargeDraft {
	return api.ChargeDraft{
		Category:     "Casa",
		Description:  "Internet",
		Amount:       decimal.RequireFromString("100"),
		DueDate:      calendar.New(2025, time.January, 31),
		Installments: 3,
		Instrument:   "Nubank",
	}
}

func TestAddCharge(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	records, err := svc.AddCharge(ctx, alice, internetDraft())
	if err != nil {
		t.Fatalf("AddCharge: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	wantDue := []calendar.Date{
		calendar.New(2025, time.January, 31),
		calendar.New(2025, time.February, 28),
		calendar.New(2025, time.March, 31),
	}
	for i, r := range records {
		if r.ID == "" || r.OwnerID != alice.UserID || r.ChargeID != records[0].ChargeID {
			t.Errorf("record %d identity = %+v", i, r)
		}
		if r.DueDate != wantDue[i] || r.Index != i+1 || r.Total != 3 {
			t.Errorf("record %d = %s %s, want %s %d/3", i, r.DueDate, r.Position(), wantDue[i], i+1)
		}
	}

	stored, _ := store.ListInstallments(ctx, alice.UserID)
	if len(stored) != 3 {
		t.Errorf("store holds %d records, want 3", len(stored))
	}
}

func TestAddChargeRejectsInvalidDraftBeforeWriting(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	bad := internetDraft()
	bad.Installments = 0
	if _, err := svc.AddCharge(ctx, alice, bad); !errors.Is(err, api.ErrInvalidDraft) {
		t.Errorf("err = %v, want ErrInvalidDraft", err)
	}
	bad = internetDraft()
	bad.DueDate = calendar.Date{Year: 2025, Month: time.February, Day: 30}
	if _, err := svc.AddCharge(ctx, alice, bad); !errors.Is(err, api.ErrInvalidDate) {
		t.Errorf("err = %v, want ErrInvalidDate", err)
	}

	stored, _ := store.ListInstallments(ctx, alice.UserID)
	if len(stored) != 0 {
		t.Errorf("store holds %d records after rejected drafts", len(stored))
	}
}

func TestAddChargeRejectsBeforeRounding(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	tests := []struct {
		name   string
		amount string
	}{
		{"negative below a cent", "-0.004"},
		{"rounds up to the column limit", "9999999999.995"},
		{"above the column limit", "12345678901"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := internetDraft()
			d.Amount = decimal.RequireFromString(tt.amount)
			records, err := svc.AddCharge(ctx, alice, d)
			if !errors.Is(err, api.ErrInvalidDraft) {
				t.Fatalf("AddCharge(%s) = %d records, %v; want ErrInvalidDraft", tt.amount, len(records), err)
			}
		})
	}

	seed, err := svc.AddCharge(ctx, alice, internetDraft())
	if err != nil {
		t.Fatalf("AddCharge: %v", err)
	}
	edit := internetDraft()
	edit.Amount = decimal.RequireFromString("-0.004")
	if _, err := svc.EditInstallment(ctx, alice, seed[0].ID, edit); !errors.Is(err, api.ErrInvalidDraft) {
		t.Errorf("EditInstallment(-0.004) err = %v, want ErrInvalidDraft", err)
	}

	stored, _ := store.ListInstallments(ctx, alice.UserID)
	for _, rec := range stored {
		if !rec.Amount.Equal(decimal.RequireFromString("100")) {
			t.Errorf("record %s amount changed to %s", rec.ID, rec.Amount)
		}
	}
	if len(stored) != 3 {
		t.Errorf("store holds %d records, want only the seeded 3", len(stored))
	}
}

func TestAddChargeRejectsDatesOutsideCalendar(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	d := internetDraft()
	d.DueDate = calendar.New(9999, time.November, 30)
	if _, err := svc.AddCharge(ctx, alice, d); !errors.Is(err, api.ErrInvalidDate) {
		t.Errorf("err = %v, want ErrInvalidDate", err)
	}
	if stored, _ := store.ListInstallments(ctx, alice.UserID); len(stored) != 0 {
		t.Errorf("store holds %d records after a rejected draft", len(stored))
	}
}

func TestAddChargePartialFailureKeepsPrefix(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	boom := errors.New("quota exceeded")
	store.FailAfter(2, boom)

	_, err := svc.AddCharge(ctx, alice, internetDraft())
	var pw *api.PartialWriteError
	if !errors.As(err, &pw) {
		t.Fatalf("err = %v, want PartialWriteError", err)
	}
	if pw.Applied != 2 || pw.Total != 3 || !errors.Is(err, boom) {
		t.Errorf("partial = %+v", pw)
	}

	stored, _ := store.ListInstallments(ctx, alice.UserID)
	if len(stored) != 2 || stored[0].Index != 1 || stored[1].Index != 2 {
		t.Errorf("surviving prefix = %+v", stored)
	}
}

func TestEditInstallmentGrowsCharge(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	records, _ := svc.AddCharge(ctx, alice, internetDraft())

	edit := internetDraft()
	edit.Installments = 5
	edit.Amount = decimal.RequireFromString("80")
	ops, err := svc.EditInstallment(ctx, alice, records[0].ID, edit)
	if err != nil {
		t.Fatalf("EditInstallment: %v", err)
	}
	if len(ops) != 5 {
		t.Fatalf("got %d operations, want 5: %v", len(ops), ops)
	}

	stored, _ := store.ListInstallments(ctx, alice.UserID)
	if len(stored) != 5 {
		t.Fatalf("store holds %d records, want 5", len(stored))
	}
	wantDue := []calendar.Date{
		calendar.New(2025, time.January, 31),
		calendar.New(2025, time.February, 28),
		calendar.New(2025, time.March, 31),
		calendar.New(2025, time.April, 30),
		calendar.New(2025, time.May, 31),
	}
	for i, r := range stored {
		if r.DueDate != wantDue[i] || r.Index != i+1 || r.Total != 5 || !r.Amount.Equal(edit.Amount) {
			t.Errorf("record %d = %s %s %s", i, r.DueDate, r.Position(), r.Amount)
		}
		if r.ChargeID != records[0].ChargeID {
			t.Errorf("record %d lost its charge id", i)
		}
	}
}

func TestEditMiddleInstallmentShiftsFromAnchor(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	records, _ := svc.AddCharge(ctx, alice, internetDraft())

	edit := internetDraft()
	edit.DueDate = calendar.New(2025, time.March, 10)
	if _, err := svc.EditInstallment(ctx, alice, records[1].ID, edit); err != nil {
		t.Fatalf("EditInstallment: %v", err)
	}

	stored, _ := store.ListInstallments(ctx, alice.UserID)
	want := []calendar.Date{
		calendar.New(2025, time.February, 10),
		calendar.New(2025, time.March, 10),
		calendar.New(2025, time.April, 10),
	}
	for i, r := range stored {
		if r.DueDate != want[i] {
			t.Errorf("index %d due %s, want %s", r.Index, r.DueDate, want[i])
		}
	}
}

func TestEditShrinkPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("default keeps trailing records", func(t *testing.T) {
		svc, store := newService(t)
		records, _ := svc.AddCharge(ctx, alice, internetDraft())
		edit := internetDraft()
		edit.Installments = 2
		if _, err := svc.EditInstallment(ctx, alice, records[0].ID, edit); err != nil {
			t.Fatalf("EditInstallment: %v", err)
		}
		stored, _ := store.ListInstallments(ctx, alice.UserID)
		if len(stored) != 3 {
			t.Errorf("store holds %d records, want 3", len(stored))
		}
		for _, r := range stored {
			if r.Total != 2 {
				t.Errorf("record %d total = %d, want 2", r.Index, r.Total)
			}
		}
	})

	t.Run("opt-in deletes trailing records", func(t *testing.T) {
		svc, store := newService(t, WithPolicy(installment.Policy{ShrinkOnEdit: true}))
		records, _ := svc.AddCharge(ctx, alice, internetDraft())
		edit := internetDraft()
		edit.Installments = 2
		if _, err := svc.EditInstallment(ctx, alice, records[0].ID, edit); err != nil {
			t.Fatalf("EditInstallment: %v", err)
		}
		stored, _ := store.ListInstallments(ctx, alice.UserID)
		if len(stored) != 2 {
			t.Errorf("store holds %d records, want 2", len(stored))
		}
	})
}

func TestEditErrors(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	records, _ := svc.AddCharge(ctx, alice, internetDraft())

	if _, err := svc.EditInstallment(ctx, alice, "missing", internetDraft()); !errors.Is(err, api.ErrRecordNotFound) {
		t.Errorf("missing id: err = %v", err)
	}
	bob := api.Session{UserID: "user-b"}
	if _, err := svc.EditInstallment(ctx, bob, records[0].ID, internetDraft()); !errors.Is(err, api.ErrRecordNotFound) {
		t.Errorf("other owner: err = %v", err)
	}

	bad := internetDraft()
	bad.Amount = decimal.RequireFromString("-1")
	if _, err := svc.EditInstallment(ctx, alice, records[0].ID, bad); !errors.Is(err, api.ErrInvalidDraft) {
		t.Errorf("negative amount: err = %v", err)
	}
	stored, _ := store.ListInstallments(ctx, alice.UserID)
	for _, r := range stored {
		if !r.Amount.Equal(decimal.NewFromInt(100)) {
			t.Errorf("rejected edit changed record %d", r.Index)
		}
	}
}

func TestEditPartialFailure(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	records, _ := svc.AddCharge(ctx, alice, internetDraft())

	boom := errors.New("network down")
	store.FailAfter(1, boom)
	edit := internetDraft()
	edit.Amount = decimal.RequireFromString("90")
	_, err := svc.EditInstallment(ctx, alice, records[0].ID, edit)

	var pw *api.PartialWriteError
	if !errors.As(err, &pw) || pw.Applied != 1 || pw.Total != 3 {
		t.Fatalf("err = %v, want 1 of 3 applied", err)
	}
	stored, _ := store.ListInstallments(ctx, alice.UserID)
	if !stored[0].Amount.Equal(edit.Amount) || !stored[1].Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("after partial edit amounts = %s, %s", stored[0].Amount, stored[1].Amount)
	}
}

func TestDeleteInstallmentAndCharge(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	first, _ := svc.AddCharge(ctx, alice, internetDraft())
	other := internetDraft()
	other.Description = "Academia"
	second, _ := svc.AddCharge(ctx, alice, other)

	if err := svc.DeleteInstallment(ctx, alice, first[1].ID); err != nil {
		t.Fatalf("DeleteInstallment: %v", err)
	}
	if err := svc.DeleteInstallment(ctx, alice, first[1].ID); !errors.Is(err, api.ErrRecordNotFound) {
		t.Errorf("second delete: err = %v", err)
	}

	n, err := svc.DeleteCharge(ctx, alice, second[0].ID)
	if err != nil || n != 3 {
		t.Fatalf("DeleteCharge = %d, %v", n, err)
	}
	stored, _ := store.ListInstallments(ctx, alice.UserID)
	if len(stored) != 2 {
		t.Errorf("store holds %d records, want 2", len(stored))
	}
	for _, r := range stored {
		if r.ChargeID != first[0].ChargeID {
			t.Errorf("record from deleted charge survived: %+v", r)
		}
	}
}

func TestListAndSummary(t *testing.T) {
	ctx := context.Background()
	now := func() time.Time { return time.Date(2025, time.February, 15, 12, 0, 0, 0, time.UTC) }
	svc, _ := newService(t, WithClock(now))
	_, _ = svc.AddCharge(ctx, alice, internetDraft())
	lunch := api.ChargeDraft{
		Category:     "Alimentação",
		Amount:       decimal.RequireFromString("42.90"),
		DueDate:      calendar.New(2025, time.February, 3),
		Installments: 1,
	}
	_, _ = svc.AddCharge(ctx, alice, lunch)

	all, err := svc.List(ctx, alice, report.Filter{})
	if err != nil || len(all) != 4 {
		t.Fatalf("List = %d records, %v", len(all), err)
	}
	food, _ := svc.List(ctx, alice, report.Filter{Category: "alimentação"})
	if len(food) != 1 {
		t.Errorf("filtered list has %d records, want 1", len(food))
	}

	sum, err := svc.Summary(ctx, alice, calendar.New(2025, time.February, 1), calendar.New(2025, time.March, 1))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Count != 2 || !sum.Total.Equal(decimal.RequireFromString("142.90")) {
		t.Errorf("February summary = %d records, %s", sum.Count, sum.Total)
	}
	if len(sum.Upcoming) != 1 || sum.Upcoming[0].DueDate != calendar.New(2025, time.February, 28) {
		t.Errorf("upcoming = %+v", sum.Upcoming)
	}

	empty, _ := svc.Summary(ctx, api.Session{UserID: "nobody"}, calendar.Date{}, calendar.Date{})
	if empty.Count != 0 || !empty.InstallmentShare.IsZero() {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, _ = svc.AddCharge(ctx, alice, internetDraft())

	got, err := svc.Categories(ctx, alice)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(got) != len(DefaultCategories)+1 || got[len(got)-1] != "Casa" {
		t.Errorf("categories = %v", got)
	}
	anon, _ := svc.Categories(ctx, api.Session{})
	if len(anon) != len(DefaultCategories) {
		t.Errorf("anonymous categories = %v", anon)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	user, err := svc.Register(ctx, "Alice", " Alice@Example.com ", "s3cret")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alice@example.com" || user.PasswordDigest == "s3cret" {
		t.Errorf("registered user = %+v", user)
	}
	if _, err := svc.Register(ctx, "Other", "alice@example.com", "x"); !errors.Is(err, api.ErrEmailTaken) {
		t.Errorf("duplicate: err = %v", err)
	}
	if _, err := svc.Register(ctx, "", "bob@example.com", "x"); !errors.Is(err, api.ErrInvalidAccount) {
		t.Errorf("missing name: err = %v", err)
	}
	if _, err := svc.Register(ctx, "Bob", "not-an-email", "x"); !errors.Is(err, api.ErrInvalidAccount) {
		t.Errorf("bad email: err = %v", err)
	}

	got, err := svc.Login(ctx, "ALICE@example.com", "s3cret")
	if err != nil || got.ID != user.ID {
		t.Errorf("Login = %+v, %v", got, err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, api.ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "s3cret"); !errors.Is(err, api.ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v", err)
	}
}
