// Package store implements UserStore: create, look up and deactivate users.
// Every call runs in exactly one pool session, committed on success and
// rolled back on any error.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/shopscale-auth/internal/server/models"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/pool"
)

// SessionRunner is the part of pool.Pool that UserStore needs.
type SessionRunner interface {
	WithSession(ctx context.Context, fn func(ctx context.Context, s *pool.Session) error) error
}

// UserStore is safe for concurrent use; it holds no state beyond the pool.
type UserStore struct {
	pool SessionRunner
	now  func() time.Time
}

// NewUserStore returns a store running its calls on p.
func NewUserStore(p SessionRunner) *UserStore {
	return &UserStore{pool: p, now: time.Now}
}

// Create inserts a new active user. The id is generated here and the email
// is normalized before insert; a case-insensitive collision yields
// common.ErrDuplicateEmail.
func (s *UserStore) Create(ctx context.Context, email, hashedPassword string) (*models.User, error) {
	user := &models.User{
		ID:             uuid.NewString(),
		Email:          models.NormalizeEmail(email),
		HashedPassword: hashedPassword,
		IsActive:       true,
		CreatedAt:      s.now().UTC().Truncate(time.Millisecond),
	}

	var created *models.User
	err := s.pool.WithSession(ctx, func(ctx context.Context, sess *pool.Session) error {
		var err error
		created, err = sess.Users().Create(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// FindByEmail matches email case-insensitively. Returns common.ErrorNotFound
// when absent.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user *models.User
	err := s.pool.WithSession(ctx, func(ctx context.Context, sess *pool.Session) error {
		var err error
		user, err = sess.Users().GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID returns the user with the given id, active or not, or
// common.ErrorNotFound.
func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user *models.User
	err := s.pool.WithSession(ctx, func(ctx context.Context, sess *pool.Session) error {
		var err error
		user, err = sess.Users().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdatePasswordHash swaps the stored hash of user id from oldHash to
// newHash. It returns common.ErrorNotFound when the user is gone or the hash
// was changed concurrently.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	return s.pool.WithSession(ctx, func(ctx context.Context, sess *pool.Session) error {
		return sess.Users().UpdatePasswordHash(ctx, id, oldHash, newHash)
	})
}

// Deactivate soft-deletes the user. Unknown ids yield common.ErrorNotFound,
// already inactive users common.ErrAlreadyInactive.
func (s *UserStore) Deactivate(ctx context.Context, id string) error {
	return s.pool.WithSession(ctx, func(ctx context.Context, sess *pool.Session) error {
		return sess.Users().Deactivate(ctx, id)
	})
}
