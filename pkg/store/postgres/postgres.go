// Package postgres provides a PostgreSQL record store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/parcelas/pkg/api"
	"github.com/ArionMiles/parcelas/pkg/calendar"
)

// Config holds the PostgreSQL store configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// DSN, when set, is used as the connection string and the fields above
	// are ignored.
	DSN string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// ConnString returns the connection string for cfg, applying defaults.
func (cfg Config) ConnString() string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
}

// Store implements api.Gateway on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ api.Gateway = (*Store)(nil)

// New connects to PostgreSQL and applies pending migrations.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	if err := Migrate(cfg.ConnString(), logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

const selectInstallment = `
	SELECT id::text, user_id::text, COALESCE(charge_id::text, ''), tipo, descricao,
	       valor::text, cartao, data_vencimento, parcela_atual, numero_parcela
	FROM installments`

func scanInstallment(row pgx.Row) (api.Installment, error) {
	var (
		rec api.Installment
		due time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.ChargeID, &rec.Category, &rec.Description,
		&rec.Amount, &rec.Instrument, &due, &rec.Index, &rec.Total,
	)
	if err != nil {
		return api.Installment{}, err
	}
	rec.DueDate = calendar.FromTime(due)
	return rec, nil
}

func (s *Store) ListInstallments(ctx context.Context, ownerID string) ([]api.Installment, error) {
	if !validID(ownerID) {
		return []api.Installment{}, nil
	}

	rows, err := s.pool.Query(ctx,
		selectInstallment+` WHERE user_id = $1 ORDER BY data_vencimento, parcela_atual, created_at`,
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
	if !validID(ownerID) || !validID(id) {
		return api.Installment{}, api.ErrRecordNotFound
	}

	row := s.pool.QueryRow(ctx, selectInstallment+` WHERE id = $1 AND user_id = $2`, id, ownerID)
	rec, err := scanInstallment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return api.Installment{}, api.ErrRecordNotFound
	}
	if err != nil {
		return api.Installment{}, fmt.Errorf("querying installment: %w", err)
	}
	return rec, nil
}

// InsertInstallments sends the inserts as one batch inside a transaction, in
// input order.
func (s *Store) InsertInstallments(ctx context.Context, records []api.Installment) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		var chargeID *string
		if rec.ChargeID != "" {
			chargeID = &rec.ChargeID
		}
		batch.Queue(`
			INSERT INTO installments (
				user_id, charge_id, tipo, descricao, valor, cartao,
				data_vencimento, parcela_atual, numero_parcela
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id::text
		`,
			rec.OwnerID,
			chargeID,
			rec.Category,
			rec.Description,
			rec.Amount.StringFixed(2),
			rec.Instrument,
			rec.DueDate.Time(),
			rec.Index,
			rec.Total,
		)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]string, 0, len(records))
	for i := range records {
		var id string
		if err := results.QueryRow().Scan(&id); err != nil {
			results.Close()
			return nil, classify(fmt.Sprintf("inserting installment %d", i), err)
		}
		ids = append(ids, id)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("inserted installments", "count", len(ids))
	return ids, nil
}

func (s *Store) UpdateInstallment(ctx context.Context, id string, fields api.InstallmentFields) error {
	if !validID(id) {
		return api.ErrRecordNotFound
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE installments
		SET tipo = $1, descricao = $2, valor = $3, cartao = $4,
		    data_vencimento = $5, parcela_atual = $6, numero_parcela = $7
		WHERE id = $8
	`,
		fields.Category,
		fields.Description,
		fields.Amount.StringFixed(2),
		fields.Instrument,
		fields.DueDate.Time(),
		fields.Index,
		fields.Total,
		id,
	)
	if err != nil {
		return classify("updating installment", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrRecordNotFound
	}
	s.logger.Debug("updated installment", "id", id)
	return nil
}

func (s *Store) DeleteInstallment(ctx context.Context, id string) error {
	if !validID(id) {
		return api.ErrRecordNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM installments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting installment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrRecordNotFound
	}
	s.logger.Debug("deleted installment", "id", id)
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user api.User) (api.User, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (nome, email, senha) VALUES ($1, $2, $3) RETURNING id::text`,
		user.Name, user.Email, user.PasswordDigest,
	).Scan(&user.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return api.User{}, api.ErrEmailTaken
	}
	if err != nil {
		return api.User{}, classify("inserting user", err)
	}
	return user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (api.User, error) {
	var user api.User
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, nome, email, senha FROM users WHERE email = $1`, email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordDigest)
	if errors.Is(err, pgx.ErrNoRows) {
		return api.User{}, api.ErrRecordNotFound
	}
	if err != nil {
		return api.User{}, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
	return nil
}

// validID reports whether id can name a row; ids are UUIDs.
// classify marks data exceptions (class 22) and integrity violations
// (class 23) as api.ErrRejected; retrying them cannot succeed.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
		return fmt.Errorf("%w: %s: %w", api.ErrRejected, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func validID(id string) bool {
	return uuid.Validate(id) == nil
}
