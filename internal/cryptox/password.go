// Package cryptox hashes and verifies user passwords.
//
// New hashes are argon2id, stored as a PHC string:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// where salt and key are unpadded standard base64. Legacy bcrypt hashes
// ($2a$, $2b$, $2y$) are still accepted by Verify.
package cryptox

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
)

const argon2Prefix = "$argon2id$"

// Upper bounds accepted when decoding a stored hash. A row outside them is
// corrupt; hashing with its parameters could run for hours or exhaust memory.
// Configured Params must stay within them too.
const (
	MaxMemoryKiB   = 1 << 20
	MaxIterations  = 16
	MaxParallelism = 64

	maxSaltLength = 64
	maxKeyLength  = 64
	maxBcryptCost = 16
)

// Params are the argon2id cost parameters used for new hashes.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultParams = Params{
	MemoryKiB:   64 * 1024,
	Iterations:  1,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

func (p Params) withDefaults() Params {
	if p.MemoryKiB == 0 {
		p.MemoryKiB = DefaultParams.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultParams.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = DefaultParams.Parallelism
	}
	if p.SaltLength == 0 {
		p.SaltLength = DefaultParams.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = DefaultParams.KeyLength
	}
	return p
}

// PasswordHasher is safe for concurrent use. At most `workers` hash
// computations run at the same time; other callers wait for a slot or for
// their context to end.
type PasswordHasher struct {
	params Params
	sem    *semaphore.Weighted
}

func NewPasswordHasher(params Params, workers int) *PasswordHasher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &PasswordHasher{
		params: params.withDefaults(),
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

// Hash derives a new argon2id hash of plaintext with a fresh random salt.
func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	p := h.params
	salt := common.GenerateRandByteArray(int(p.SaltLength))

	var key []byte
	err := h.run(ctx, func() {
		key = argon2.IDKey([]byte(plaintext), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	})
	if err != nil {
		return "", err
	}

	return encodeArgon2(p, salt, key), nil
}

// Verify reports whether plaintext matches encoded. A malformed encoded
// value yields common.ErrInvalidHashFormat rather than false.
func (h *PasswordHasher) Verify(ctx context.Context, plaintext, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return h.verifyBcrypt(ctx, plaintext, encoded)
	}

	p, salt, key, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}

	var candidate []byte
	err = h.run(ctx, func() {
		candidate = argon2.IDKey([]byte(plaintext), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	})
	if err != nil {
		return false, err
	}
	defer common.WipeByteArray(candidate)

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// NeedsRehash reports whether encoded was produced with different
// parameters (or a different algorithm) than the ones currently configured.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	p, salt, key, err := decodeArgon2(encoded)
	if err != nil {
		return true
	}
	cur := h.params
	return p.MemoryKiB != cur.MemoryKiB ||
		p.Iterations != cur.Iterations ||
		p.Parallelism != cur.Parallelism ||
		uint32(len(salt)) != cur.SaltLength ||
		uint32(len(key)) != cur.KeyLength
}

func (h *PasswordHasher) verifyBcrypt(ctx context.Context, plaintext, encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil || cost > maxBcryptCost {
		return false, common.ErrInvalidHashFormat
	}

	if runErr := h.run(ctx, func() {
		err = bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext))
	}); runErr != nil {
		return false, runErr
	}

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, common.ErrInvalidHashFormat
	}
}

// run executes fn once a worker slot is free.
func (h *PasswordHasher) run(ctx context.Context, fn func()) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for hash worker: %w", err)
	}
	defer h.sem.Release(1)
	fn()
	return nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func encodeArgon2(p Params, salt, key []byte) string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func decodeArgon2(encoded string) (Params, []byte, []byte, error) {
	var p Params

	if !strings.HasPrefix(encoded, argon2Prefix) {
		return p, nil, nil, common.ErrInvalidHashFormat
	}
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return p, nil, nil, common.ErrInvalidHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, common.ErrInvalidHashFormat
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, common.ErrInvalidHashFormat
	}
	if p.MemoryKiB == 0 || p.Iterations == 0 || p.Parallelism == 0 ||
		p.MemoryKiB > MaxMemoryKiB || p.Iterations > MaxIterations || p.Parallelism > MaxParallelism ||
		p.MemoryKiB < 8*uint32(p.Parallelism) ||
		parts[3] != fmt.Sprintf("m=%d,t=%d,p=%d", p.MemoryKiB, p.Iterations, p.Parallelism) {
		return p, nil, nil, common.ErrInvalidHashFormat
	}

	if len(parts[4]) > base64.RawStdEncoding.EncodedLen(maxSaltLength) ||
		len(parts[5]) > base64.RawStdEncoding.EncodedLen(maxKeyLength) {
		return p, nil, nil, common.ErrInvalidHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, common.ErrInvalidHashFormat
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, common.ErrInvalidHashFormat
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}
