// Package users maps the models.User struct onto the users table. There is
// one implementation per SQL dialect; both are bound to a dbx.DBTX so they
// run inside whatever session the caller holds.
package users

import (
	"context"

	"github.com/dmitrijs2005/shopscale-auth/internal/server/models"
)

// Repository is the persistence contract for users.
//
// Create returns common.ErrDuplicateEmail on a case-insensitive email
// collision. Lookups return common.ErrorNotFound. Deactivate returns
// common.ErrorNotFound for unknown ids and common.ErrAlreadyInactive when
// the user is already inactive. UpdatePasswordHash only replaces oldHash
// and returns common.ErrorNotFound when no row still carries it.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Deactivate(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error
}
