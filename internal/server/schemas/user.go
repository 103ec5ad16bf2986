// Package schemas defines the request and response contracts of the auth
// core and validates incoming requests with struct tags.
package schemas

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/models"
)

// RegisterRequest is the registration input.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest only checks presence; wrong credentials are reported as
// unauthorized, not as validation errors.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public view of a user. It never carries the hash.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks v against its validate tags. Failures wrap
// common.ErrorValidation and name the fields and rules, never the values.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := strings.ToLower(fe.Field()) + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", common.ErrorValidation, strings.Join(msgs, ", "))
}
