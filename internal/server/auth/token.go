// Package auth issues and validates the signed, expiring access tokens that
// identify a user. Tokens are stateless HMAC-signed JWTs; the only key is
// the process secret.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
	"github.com/dmitrijs2005/shopscale-auth/internal/logging"
)

// Claims carried by an access token. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// Options configure a TokenService.
type Options struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
	// Leeway tolerates issuer clock skew on the issued-at claim. Expiry is
	// always checked strictly.
	Leeway time.Duration
	Issuer string
}

// TokenService issues and verifies signed access tokens carrying the user id
// as subject. It is immutable after construction and safe for concurrent use.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	issuer string
	parser *jwt.Parser
	logger logging.Logger
	now    func() time.Time
}

var allowedMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// NewTokenService validates opts and builds the parser once. An empty
// secret, an algorithm outside the HMAC family or a negative duration yield
// common.ErrorValidation.
func NewTokenService(opts Options, logger logging.Logger) (*TokenService, error) {
	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("%w: empty token secret", common.ErrorValidation)
	}
	if !slices.Contains(allowedMethods, opts.Algorithm) {
		return nil, fmt.Errorf("%w: unsupported token algorithm %q", common.ErrorValidation, opts.Algorithm)
	}
	if opts.TTL < 0 || opts.Leeway < 0 {
		return nil, fmt.Errorf("%w: negative token ttl or leeway", common.ErrorValidation)
	}

	s := &TokenService{
		secret: opts.Secret,
		method: jwt.GetSigningMethod(opts.Algorithm),
		ttl:    opts.TTL,
		issuer: opts.Issuer,
		logger: logger.With("component", "tokens"),
		now:    time.Now,
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{opts.Algorithm}),
		jwt.WithLeeway(opts.Leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	s.parser = jwt.NewParser(parserOpts...)

	return s, nil
}

// Issue signs a token for userID that expires TTL from now.
func (s *TokenService) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", common.ErrorValidation)
	}

	now := s.now()
	token := jwt.NewWithClaims(s.method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature first, then expiry, and returns the user id.
// Callers only ever see common.ErrInvalidSignature or common.ErrTokenExpired;
// the detailed reason is logged at debug level.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		s.logger.Debug(context.Background(), "token rejected", "reason", err.Error())
		return "", common.ErrInvalidSignature
	}

	// the parser applies leeway to exp as well
	if !s.now().Before(claims.ExpiresAt.Time) {
		return "", common.ErrTokenExpired
	}

	if claims.Subject == "" {
		s.logger.Debug(context.Background(), "token rejected", "reason", "missing subject")
		return "", common.ErrInvalidSignature
	}

	return claims.Subject, nil
}
