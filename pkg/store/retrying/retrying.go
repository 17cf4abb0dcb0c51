// Package retrying wraps a gateway so transient failures are retried before
// they reach the ledger. Failures that outlast the retries are reported as
// api.ErrStoreUnavailable.
package retrying

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/parcelas/pkg/api"
)

// Default retry settings.
const (
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond
)

// Config holds the retry settings.
type Config struct {
	// Attempts is the total number of tries per call. Defaults to DefaultAttempts.
	Attempts uint
	// Delay is the base delay between tries. Defaults to DefaultDelay.
	Delay time.Duration
}

// Store retries the calls of the wrapped gateway.
type Store struct {
	next   api.Gateway
	cfg    Config
	logger *slog.Logger
}

var _ api.Gateway = (*Store)(nil)

// New wraps next.
func New(next api.Gateway, cfg Config, logger *slog.Logger) *Store {
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{next: next, cfg: cfg, logger: logger}
}

// permanent reports errors that a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, api.ErrRecordNotFound) ||
		errors.Is(err, api.ErrEmailTaken) ||
		errors.Is(err, api.ErrRejected) ||
		errors.Is(err, api.ErrInvalidDraft) ||
		errors.Is(err, api.ErrInvalidDate) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *Store) do(ctx context.Context, op string, fn func() error) error {
	err := retry.Do(
		fn,
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool { return !permanent(err) }),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("store call failed, retrying", "op", op, "attempt", n+1, "error", err)
		}),
		retry.Attempts(s.cfg.Attempts),
		retry.Delay(s.cfg.Delay),
		retry.LastErrorOnly(true),
	)
	if err == nil || permanent(err) || errors.Is(err, api.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", api.ErrStoreUnavailable, op, err)
}

func (s *Store) ListInstallments(ctx context.Context, ownerID string) ([]api.Installment, error) {
	var out []api.Installment
	err := s.do(ctx, "list installments", func() error {
		var err error
		out, err = s.next.ListInstallments(ctx, ownerID)
		return err
	})
	return out, err
}

func (s *Store) GetInstallment(ctx context.Context, ownerID, id string) (api.Installment, error) {
	var out api.Installment
	err := s.do(ctx, "get installment", func() error {
		var err error
		out, err = s.next.GetInstallment(ctx, ownerID, id)
		return err
	})
	return out, err
}

// InsertInstallments only retries while nothing has been stored; once part of
// the batch landed, repeating it would duplicate records.
func (s *Store) InsertInstallments(ctx context.Context, records []api.Installment) ([]string, error) {
	var (
		ids     []string
		partial error
	)
	err := s.do(ctx, "insert installments", func() error {
		var err error
		ids, err = s.next.InsertInstallments(ctx, records)
		if err != nil && len(ids) > 0 {
			partial = err
			return nil
		}
		return err
	})
	if partial != nil {
		if permanent(partial) {
			return ids, partial
		}
		return ids, fmt.Errorf("%w: insert installments: %w", api.ErrStoreUnavailable, partial)
	}
	return ids, err
}

func (s *Store) UpdateInstallment(ctx context.Context, id string, fields api.InstallmentFields) error {
	return s.do(ctx, "update installment", func() error {
		return s.next.UpdateInstallment(ctx, id, fields)
	})
}

func (s *Store) DeleteInstallment(ctx context.Context, id string) error {
	return s.do(ctx, "delete installment", func() error {
		return s.next.DeleteInstallment(ctx, id)
	})
}

func (s *Store) CreateUser(ctx context.Context, user api.User) (api.User, error) {
	var out api.User
	err := s.do(ctx, "create user", func() error {
		var err error
		out, err = s.next.CreateUser(ctx, user)
		return err
	})
	return out, err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (api.User, error) {
	var out api.User
	err := s.do(ctx, "user by email", func() error {
		var err error
		out, err = s.next.UserByEmail(ctx, email)
		return err
	})
	return out, err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", func() error { return s.next.Ping(ctx) })
}

func (s *Store) Close() error {
	return s.next.Close()
}
