package postgres

import (
	"context"
	"errors"
	"fmt"

	"contactsync/internal/domain/account"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

const uniqueViolation = "23505"

type AccountRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ account.Repository = (*AccountRepository)(nil)

func NewAccountRepository(storage *Storage, log *slog.Logger) *AccountRepository {
	return &AccountRepository{
		pool: storage.Pool(),
		log:  log.With(slog.String("component", "account_repository")),
	}
}

func (r *AccountRepository) Create(ctx context.Context, name, displayName string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (name, display_name) VALUES ($1, $2) RETURNING id`,
		name, displayName).Scan(&id)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return 0, account.ErrExists
	}
	if err != nil {
		r.log.Error("failed to create account", "name", name, "error", err)
		return 0, fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

func (r *AccountRepository) SaveToken(ctx context.Context, token account.Token) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO device_tokens (id, account_id, hash) VALUES ($1, $2, $3)`,
		token.ID, token.AccountID, token.Hash)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (r *AccountRepository) TokenByID(ctx context.Context, id uuid.UUID) (account.Token, error) {
	t := account.Token{ID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT account_id, hash, created_at FROM device_tokens WHERE id = $1`, id).
		Scan(&t.AccountID, &t.Hash, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.Token{}, account.ErrNotFound
	}
	if err != nil {
		return account.Token{}, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}
