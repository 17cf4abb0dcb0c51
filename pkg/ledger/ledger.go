// Package ledger runs the user-facing operations of parcelas: adding a charge,
// editing or deleting its installments, listing and summarising them, and the
// account flow. Each call carries the caller's session explicitly; the service
// holds no per-user state.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/auth"
	"github.com/ArionMiles/parcelas/pkg/calendar"
	"github.com/ArionMiles/parcelas/pkg/installment"
	"github.com/ArionMiles/parcelas/pkg/report"
)

// DefaultCategories are offered to every user. Records may use any other
// category as well.
var DefaultCategories = []string{
	"Alimentação",
	"Moradia",
	"Transporte",
	"Saúde",
	"Educação",
	"Lazer",
	"Internet",
	"Cartão",
	"Outros",
}

// upcomingLimit caps the upcoming list of a summary.
const upcomingLimit = 5

// Service applies ledger operations against a gateway.
type Service struct {
	store  api.Gateway
	policy installment.Policy
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the reconciliation policy used by edits.
func WithPolicy(p installment.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock overrides the wall clock used to pick upcoming installments.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(store api.Gateway, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Categories returns the default categories followed by any other category
// the user already has on record, in first-use order.
func (s *Service) Categories(ctx context.Context, sess api.Session) ([]string, error) {
	categories := append([]string(nil), DefaultCategories...)
	if sess.UserID == "" {
		return categories, nil
	}

	records, err := s.store.ListInstallments(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing installments: %w", err)
	}
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		seen[strings.ToLower(c)] = true
	}
	for _, r := range records {
		key := strings.ToLower(r.Category)
		if r.Category == "" || seen[key] {
			continue
		}
		seen[key] = true
		categories = append(categories, r.Category)
	}
	return categories, nil
}

// AddCharge splits a draft into installments and stores them in index order.
// It returns the stored records with their ids.
func (s *Service) AddCharge(ctx context.Context, sess api.Session, draft api.ChargeDraft) ([]api.Installment, error) {
	// Validate the input as given; rounding must not turn a bad amount good.
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	draft = draft.Normalize()
	records, err := installment.Expand(sess.UserID, uuid.NewString(), draft)
	if err != nil {
		return nil, err
	}

	ids, err := s.store.InsertInstallments(ctx, records)
	if err != nil {
		s.logger.Error("charge partially stored",
			"owner", sess.UserID, "stored", len(ids), "total", len(records), "error", err)
		return nil, partial(len(ids), len(records), fmt.Errorf("inserting installments: %w", err))
	}
	for i := range records {
		records[i].ID = ids[i]
	}

	s.logger.Info("charge added",
		"owner", sess.UserID, "charge", records[0].ChargeID, "installments", len(records))
	return records, nil
}

// EditInstallment rewrites the charge that installment id belongs to so it
// matches draft. The draft describes the edited installment: its due date is
// that installment's new due date. It returns the operations applied.
func (s *Service) EditInstallment(ctx context.Context, sess api.Session, id string, draft api.ChargeDraft) ([]api.Operation, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	draft = draft.Normalize()

	anchor, err := s.store.GetInstallment(ctx, sess.UserID, id)
	if err != nil {
		return nil, fmt.Errorf("loading installment %s: %w", id, err)
	}
	siblings, err := s.siblings(ctx, anchor)
	if err != nil {
		return nil, err
	}

	ops, err := installment.Reconcile(siblings, draft, anchor.Index, s.policy)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, ops); err != nil {
		s.logger.Error("edit partially applied", "owner", sess.UserID, "installment", id, "error", err)
		return nil, err
	}

	s.logger.Info("installment edited",
		"owner", sess.UserID, "installment", id, "siblings", len(siblings), "operations", len(ops))
	return ops, nil
}

// DeleteInstallment removes a single installment.
func (s *Service) DeleteInstallment(ctx context.Context, sess api.Session, id string) error {
	if _, err := s.store.GetInstallment(ctx, sess.UserID, id); err != nil {
		return fmt.Errorf("loading installment %s: %w", id, err)
	}
	if err := s.store.DeleteInstallment(ctx, id); err != nil {
		return fmt.Errorf("deleting installment %s: %w", id, err)
	}
	s.logger.Info("installment deleted", "owner", sess.UserID, "installment", id)
	return nil
}

// DeleteCharge removes every installment of the charge that id belongs to,
// in index order. It returns how many records were deleted.
func (s *Service) DeleteCharge(ctx context.Context, sess api.Session, id string) (int, error) {
	anchor, err := s.store.GetInstallment(ctx, sess.UserID, id)
	if err != nil {
		return 0, fmt.Errorf("loading installment %s: %w", id, err)
	}
	siblings, err := s.siblings(ctx, anchor)
	if err != nil {
		return 0, err
	}

	for i, rec := range siblings {
		if err := s.store.DeleteInstallment(ctx, rec.ID); err != nil {
			return i, partial(i, len(siblings), fmt.Errorf("deleting installment %s: %w", rec.ID, err))
		}
	}
	s.logger.Info("charge deleted", "owner", sess.UserID, "installments", len(siblings))
	return len(siblings), nil
}

// List returns the caller's installments that pass filter, ordered by due
// date then index.
func (s *Service) List(ctx context.Context, sess api.Session, filter report.Filter) ([]api.Installment, error) {
	records, err := s.store.ListInstallments(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing installments: %w", err)
	}
	return filter.Apply(records), nil
}

// Summary builds the dashboard summary of the installments due in
// [from, to). Zero bounds leave the window open on that side.
func (s *Service) Summary(ctx context.Context, sess api.Session, from, to calendar.Date) (report.Summary, error) {
	records, err := s.store.ListInstallments(ctx, sess.UserID)
	if err != nil {
		return report.Summary{}, fmt.Errorf("listing installments: %w", err)
	}
	today := calendar.FromTime(s.now())
	return report.Summarize(report.Window(records, from, to), today, upcomingLimit), nil
}

// Register creates an account. The email is stored lowercased.
func (s *Service) Register(ctx context.Context, name, email, password string) (api.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || password == "" {
		return api.User{}, fmt.Errorf("%w: name and password are required", api.ErrInvalidAccount)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return api.User{}, fmt.Errorf("%w: invalid email %q", api.ErrInvalidAccount, email)
	}

	user, err := s.store.CreateUser(ctx, api.User{
		Name:           name,
		Email:          email,
		PasswordDigest: auth.Digest(password),
	})
	if err != nil {
		return api.User{}, fmt.Errorf("creating user: %w", err)
	}
	s.logger.Info("user registered", "user", user.ID)
	return user, nil
}

// Login checks credentials and returns the matching user. Unknown emails and
// wrong passwords both report ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (api.User, error) {
	user, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, api.ErrRecordNotFound) {
		return api.User{}, api.ErrInvalidCredentials
	}
	if err != nil {
		return api.User{}, fmt.Errorf("loading user: %w", err)
	}
	if !auth.Verify(password, user.PasswordDigest) {
		return api.User{}, api.ErrInvalidCredentials
	}
	return user, nil
}

// Ping checks the gateway.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) siblings(ctx context.Context, anchor api.Installment) ([]api.Installment, error) {
	records, err := s.store.ListInstallments(ctx, anchor.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("listing installments: %w", err)
	}
	return installment.Siblings(records, anchor), nil
}

// apply writes ops in order and stops at the first failure.
func (s *Service) apply(ctx context.Context, ops []api.Operation) error {
	for i, op := range ops {
		var err error
		switch op.Kind {
		case api.OpCreate:
			_, err = s.store.InsertInstallments(ctx, []api.Installment{*op.Record})
		case api.OpUpdate:
			err = s.store.UpdateInstallment(ctx, op.ID, op.Fields)
		case api.OpDelete:
			err = s.store.DeleteInstallment(ctx, op.ID)
		default:
			err = fmt.Errorf("unknown operation kind %q", op.Kind)
		}
		if err != nil {
			return partial(i, len(ops), fmt.Errorf("%s: %w", op, err))
		}
		s.logger.Debug("operation applied", "op", op.String())
	}
	return nil
}

// partial wraps err in a PartialWriteError when some writes already landed.
func partial(applied, total int, err error) error {
	if applied == 0 {
		return err
	}
	return &api.PartialWriteError{Applied: applied, Total: total, Err: err}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
