// Package memory is an in-process record store. It backs the test suites and
// the "memory" store plugin for throwaway demo servers.
package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ArionMiles/parcelas/pkg/api"
)

// Store keeps installments and users in memory. It is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	installments map[string]api.Installment
	// order keeps insertion order so listings are stable among equal keys.
	order []string
	users map[string]api.User

	// writesLeft limits how many further writes succeed; negative means unlimited.
	writesLeft int
	failErr    error
	closed     bool
}

var _ api.Gateway = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		installments: make(map[string]api.Installment),
		users:        make(map[string]api.User),
		writesLeft:   -1,
	}
}

// FailAfter makes every record write after the next n fail with err, which
// lets callers exercise partially applied multi-record writes.
func (s *Store) FailAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writesLeft = n
	s.failErr = err
}

// write consumes one write from the failure budget. Callers hold mu.
func (s *Store) write() error {
	if s.closed {
		return api.ErrStoreUnavailable
	}
	if s.writesLeft == 0 {
		return s.failErr
	}
	if s.writesLeft > 0 {
		s.writesLeft--
	}
	return nil
}

func (s *Store) ListInstallments(_ context.Context, ownerID string) ([]api.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, api.ErrStoreUnavailable
	}

	out := make([]api.Installment, 0)
	for _, id := range s.order {
		rec, ok := s.installments[id]
		if ok && rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	slices.SortStableFunc(out, func(a, b api.Installment) int {
		if c := a.DueDate.Compare(b.DueDate); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return out, nil
}

func (s *Store) GetInstallment(_ context.Context, ownerID, id string) (api.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return api.Installment{}, api.ErrStoreUnavailable
	}

	rec, ok := s.installments[id]
	if !ok || rec.OwnerID != ownerID {
		return api.Installment{}, api.ErrRecordNotFound
	}
	return rec, nil
}

// InsertInstallments stores records one at a time in input order. When a
// write fails, the records before it stay stored.
func (s *Store) InsertInstallments(_ context.Context, records []api.Installment) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if err := s.write(); err != nil {
			return ids, err
		}
		rec.ID = uuid.NewString()
		s.installments[rec.ID] = rec
		s.order = append(s.order, rec.ID)
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

func (s *Store) UpdateInstallment(_ context.Context, id string, fields api.InstallmentFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.installments[id]
	if !ok {
		return api.ErrRecordNotFound
	}
	if err := s.write(); err != nil {
		return err
	}
	s.installments[id] = rec.WithFields(fields)
	return nil
}

func (s *Store) DeleteInstallment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.installments[id]; !ok {
		return api.ErrRecordNotFound
	}
	if err := s.write(); err != nil {
		return err
	}
	delete(s.installments, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

func (s *Store) CreateUser(_ context.Context, user api.User) (api.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.User{}, api.ErrStoreUnavailable
	}

	key := strings.ToLower(user.Email)
	if _, taken := s.users[key]; taken {
		return api.User{}, api.ErrEmailTaken
	}
	user.ID = uuid.NewString()
	s.users[key] = user
	return user, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return api.User{}, api.ErrStoreUnavailable
	}

	user, ok := s.users[strings.ToLower(email)]
	if !ok {
		return api.User{}, api.ErrRecordNotFound
	}
	return user, nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.Join(api.ErrStoreUnavailable, errors.New("store closed"))
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
