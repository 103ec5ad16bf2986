package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
	"github.com/dmitrijs2005/shopscale-auth/internal/dbx"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/models"
)

const (
	pgUniqueViolation = "23505"
	emailConstraint   = "users_email_key"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, email, hashed_password, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.HashedPassword, user.IsActive, user.CreatedAt)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, hashed_password, is_active, created_at FROM users
		 WHERE lower(email) = $1
		 `
	return r.scanOne(ctx, query, models.NormalizeEmail(email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, email, hashed_password, is_active, created_at FROM users
		 WHERE id = $1
		 `
	return r.scanOne(ctx, query, id)
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET is_active = FALSE
		 WHERE id = $1 AND is_active
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 1 {
		return nil
	}

	var active bool
	err = r.db.QueryRowContext(ctx, `SELECT is_active FROM users WHERE id = $1`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return common.ErrAlreadyInactive
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	query :=
		`UPDATE users SET hashed_password = $3
		 WHERE id = $1 AND hashed_password = $2
		 `

	res, err := r.db.ExecContext(ctx, query, id, oldHash, newHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.HashedPassword, &user.IsActive, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// isPgUniqueViolation matches the unique email index only; an id
// collision (users_pkey) stays a plain db error.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == emailConstraint
	}
	return false
}
