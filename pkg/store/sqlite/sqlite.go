// Package sqlite provides a record store backed by a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/calendar"
)

// DefaultPath is where the database lives unless configured otherwise.
const DefaultPath = "data/parcelas.db"

// Config holds the SQLite store configuration.
type Config struct {
	// Path is the database file. Defaults to DefaultPath.
	Path string
}

// Store implements api.Gateway on SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ api.Gateway = (*Store)(nil)

// New opens the database file, creating it and its directory when missing,
// and applies pending migrations.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := Migrate(cfg.Path); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("opened SQLite store", "path", cfg.Path)
	return &Store{db: db, logger: logger}, nil
}

const selectInstallment = `
	SELECT id, user_id, COALESCE(charge_id, ''), tipo, descricao, valor, cartao,
	       data_vencimento, parcela_atual, numero_parcela
	FROM installments`

type scanner interface {
	Scan(dest ...any) error
}

func scanInstallment(row scanner) (api.Installment, error) {
	var (
		rec api.Installment
		due string
	)
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.ChargeID, &rec.Category, &rec.Description,
		&rec.Amount, &rec.Instrument, &due, &rec.Index, &rec.Total,
	)
	if err != nil {
		return api.Installment{}, err
	}
	rec.DueDate, err = calendar.Parse(due)
	if err != nil {
		return api.Installment{}, fmt.Errorf("installment %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (s *Store) ListInstallments(ctx context.Context, ownerID string) ([]api.Installment, error) {
	rows, err := s.db.QueryContext(ctx,
		selectInstallment+` WHERE user_id = ? ORDER BY data_vencimento, parcela_atual, created_at`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying installments: %w", err)
	}
	defer rows.Close()

	out := make([]api.Installment, 0)
	for rows.Next() {
		rec, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning installment: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating installments: %w", err)
	}
	return out, nil
}

func (s *Store) GetInstallment(ctx context.Context, ownerID, id string) (api.Installment, error) {
	row := s.db.QueryRowContext(ctx, selectInstallment+` WHERE id = ? AND user_id = ?`, id, ownerID)
	rec, err := scanInstallment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Installment{}, api.ErrRecordNotFound
	}
	if err != nil {
		return api.Installment{}, fmt.Errorf("querying installment: %w", err)
	}
	return rec, nil
}

// InsertInstallments writes the records in one transaction, in input order.
func (s *Store) InsertInstallments(ctx context.Context, records []api.Installment) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO installments (
			id, user_id, charge_id, tipo, descricao, valor, cartao,
			data_vencimento, parcela_atual, numero_parcela
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(records))
	for i, rec := range records {
		id := uuid.NewString()
		_, err := stmt.ExecContext(ctx,
			id, rec.OwnerID, nullable(rec.ChargeID), rec.Category, rec.Description,
			rec.Amount.StringFixed(2), rec.Instrument, rec.DueDate.String(), rec.Index, rec.Total,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting installment %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("inserted installments", "count", len(ids))
	return ids, nil
}

func (s *Store) UpdateInstallment(ctx context.Context, id string, fields api.InstallmentFields) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE installments
		SET tipo = ?, descricao = ?, valor = ?, cartao = ?,
		    data_vencimento = ?, parcela_atual = ?, numero_parcela = ?
		WHERE id = ?`,
		fields.Category, fields.Description, fields.Amount.StringFixed(2), fields.Instrument,
		fields.DueDate.String(), fields.Index, fields.Total, id,
	)
	if err != nil {
		return fmt.Errorf("updating installment: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	s.logger.Debug("updated installment", "id", id)
	return nil
}

func (s *Store) DeleteInstallment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM installments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting installment: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	s.logger.Debug("deleted installment", "id", id)
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user api.User) (api.User, error) {
	user.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, nome, email, senha) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordDigest,
	)
	if isUniqueViolation(err) {
		return api.User{}, api.ErrEmailTaken
	}
	if err != nil {
		return api.User{}, fmt.Errorf("inserting user: %w", err)
	}
	return user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (api.User, error) {
	var user api.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, nome, email, senha FROM users WHERE email = ?`, email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return api.User{}, api.ErrRecordNotFound
	}
	if err != nil {
		return api.User{}, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("closed SQLite store")
	return s.db.Close()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return api.ErrRecordNotFound
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
