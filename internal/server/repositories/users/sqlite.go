package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
	"github.com/dmitrijs2005/shopscale-auth/internal/dbx"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/models"
)

// SQLiteRepository stores created_at as unix milliseconds and is_active as
// 0/1, the portable SQLite representations.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (id, email, hashed_password, is_active, created_at)
			VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.HashedPassword, user.IsActive, toMillis(user.CreatedAt))
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, hashed_password, is_active, created_at FROM users
			WHERE email = ? COLLATE NOCASE`
	return r.scanOne(ctx, query, models.NormalizeEmail(email))
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, hashed_password, is_active, created_at FROM users
			WHERE id = ?`
	return r.scanOne(ctx, query, id)
}

func (r *SQLiteRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = 0 WHERE id = ? AND is_active = 1`, id)
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
	err = r.db.QueryRowContext(ctx, `SELECT is_active FROM users WHERE id = ?`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return common.ErrAlreadyInactive
}

func (r *SQLiteRepository) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	query := `UPDATE users SET hashed_password = ? WHERE id = ? AND hashed_password = ?`

	res, err := r.db.ExecContext(ctx, query, newHash, id, oldHash)
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

func (r *SQLiteRepository) scanOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		user      = &models.User{}
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.HashedPassword, &user.IsActive, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

// isSQLiteUniqueViolation matches the unique email index only; a primary key
// collision is SQLITE_CONSTRAINT_PRIMARYKEY and stays a plain db error.
func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
