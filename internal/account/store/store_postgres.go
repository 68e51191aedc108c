package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alumnus/internal/account/models"
	"alumnus/internal/platform/postgres"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

const emailConstraint = "accounts_email_key"

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, a *models.Account) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(a.ID), a.Email, a.PasswordHash, string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, emailConstraint) {
			return fmt.Errorf("account email: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, email, password_hash, status, created_at, updated_at
		FROM accounts WHERE id = $1`,
		uuid.UUID(accountID),
	)
	return scanAccount(row)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, email, password_hash, status, created_at, updated_at
		FROM accounts WHERE email = $1`,
		email,
	)
	return scanAccount(row)
}

func (s *Postgres) UpdateStatus(ctx context.Context, accountID id.AccountID, status models.Status, at time.Time) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(accountID), string(status), at,
	)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a      models.Account
		raw    uuid.UUID
		status string
	)
	if err := row.Scan(&raw, &a.Email, &a.PasswordHash, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.ID = id.AccountID(raw)
	a.Status = models.Status(status)
	return &a, nil
}
