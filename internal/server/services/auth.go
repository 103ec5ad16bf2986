// Package services contains server-side business logic. AuthService
// orchestrates registration, login and token authentication on top of the
// user store, the password hasher and the token service.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
	"github.com/dmitrijs2005/shopscale-auth/internal/logging"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/models"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/schemas"
)

// UserStore persists users. Implemented by store.UserStore.
type UserStore interface {
	Create(ctx context.Context, email, hashedPassword string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Deactivate(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error
}

// PasswordHasher is implemented by cryptox.PasswordHasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

// TokenIssuer is implemented by auth.TokenService.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	logger logging.Logger

	// decoy is verified against when the email is unknown so that both
	// login paths cost one hash computation.
	decoy string
}

// NewAuthService computes the decoy hash up front so that no login pays
// for it.
func NewAuthService(ctx context.Context, users UserStore, hasher PasswordHasher, tokens TokenIssuer, logger logging.Logger) (*AuthService, error) {
	secret, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("decoy secret: %w", err)
	}
	decoy, err := hasher.Hash(ctx, secret)
	if err != nil {
		return nil, fmt.Errorf("decoy hash: %w", err)
	}

	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With("component", "auth"),
		decoy:  decoy,
	}, nil
}

// Register validates the request, hashes the password outside of any
// database session and stores the user.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	req := schemas.RegisterRequest{Email: models.NormalizeEmail(email), Password: password}
	if err := schemas.Validate(req); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, req.Email, hashed)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the credentials and returns a fresh access token.
// Unknown emails, wrong passwords and inactive users all yield
// common.ErrorUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if err := schemas.Validate(schemas.LoginRequest{Email: email, Password: password}); err != nil {
		return "", nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnDecoy(ctx, password)
			return "", nil, common.ErrorUnauthorized
		}
		return "", nil, err
	}

	ok, err := s.hasher.Verify(ctx, password, user.HashedPassword)
	if err != nil {
		if errors.Is(err, common.ErrInvalidHashFormat) {
			s.logger.Error(ctx, "stored password hash is malformed", "user_id", user.ID)
		}
		return "", nil, err
	}
	if !ok || !user.IsActive {
		return "", nil, common.ErrorUnauthorized
	}

	if s.hasher.NeedsRehash(user.HashedPassword) {
		s.upgradeHash(ctx, user, password)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

// Authenticate resolves an access token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

func (s *AuthService) Deactivate(ctx context.Context, id string) error {
	if err := s.users.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "user deactivated", "user_id", id)
	return nil
}

func (s *AuthService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.FindByEmail(ctx, email)
}

// upgradeHash replaces a hash made with outdated parameters (or a legacy
// bcrypt hash) by one made with the current parameters. Failure only costs
// the upgrade; the login itself has already succeeded.
func (s *AuthService) upgradeHash(ctx context.Context, user *models.User, password string) {
	hashed, err := s.hasher.Hash(ctx, password)
	if err != nil {
		s.logger.Warn(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, user.HashedPassword, hashed); err != nil {
		s.logger.Warn(ctx, "password rehash not stored", "user_id", user.ID, "error", err)
		return
	}
	user.HashedPassword = hashed
	s.logger.Info(ctx, "password hash upgraded", "user_id", user.ID)
}

func (s *AuthService) burnDecoy(ctx context.Context, password string) {
	_, _ = s.hasher.Verify(ctx, password, s.decoy)
}
