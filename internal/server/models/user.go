package models

import (
	"fmt"
	"strings"
	"time"
)

// User is a registered account. HashedPassword is opaque storage material
// and must never be logged or returned to clients.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	IsActive       bool
	CreatedAt      time.Time
}

// NormalizeEmail is the canonical form used for storage and lookups, so
// uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// String omits the password hash so a User is safe to print.
func (u User) String() string {
	return fmt.Sprintf("User{id=%s email=%s active=%t}", u.ID, u.Email, u.IsActive)
}
