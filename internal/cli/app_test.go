package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/models"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/schemas"
)

type fakeAuth struct {
	user *models.User
	err  error

	gotEmail    string
	gotPassword string
	gotArg      string
}

func (f *fakeAuth) Register(_ context.Context, email, password string) (*models.User, error) {
	f.gotEmail, f.gotPassword = email, password
	return f.user, f.err
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (string, *models.User, error) {
	f.gotEmail, f.gotPassword = email, password
	if f.err != nil {
		return "", nil, f.err
	}
	return "token-xyz", f.user, nil
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	f.gotArg = token
	return f.user, f.err
}

func (f *fakeAuth) Deactivate(_ context.Context, id string) error {
	f.gotArg = id
	return f.err
}

func (f *fakeAuth) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.gotArg = email
	return f.user, f.err
}

func testUser() *models.User {
	return &models.User{
		ID: "id-1", Email: "a@b.com", HashedPassword: "$argon2id$hidden",
		IsActive: true, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func run(t *testing.T, auth *fakeAuth, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := NewApp(auth, strings.NewReader(stdin), &out).Run(context.Background(), args)
	return out.String(), err
}

func decodeUser(t *testing.T, out string) schemas.UserResponse {
	t.Helper()
	start := strings.Index(out, "{")
	require.GreaterOrEqual(t, start, 0, out)
	var resp schemas.UserResponse
	require.NoError(t, json.Unmarshal([]byte(out[start:]), &resp))
	return resp
}

func TestRun_Register(t *testing.T) {
	stubPassword(t, "password1", nil)
	auth := &fakeAuth{user: testUser()}

	out, err := run(t, auth, "", "register", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", auth.gotEmail)
	assert.Equal(t, "password1", auth.gotPassword)
	assert.Equal(t, "id-1", decodeUser(t, out).ID)
	assert.NotContains(t, out, "argon2id")
	assert.NotContains(t, out, "password1")
}

func TestRun_RegisterPromptsForEmail(t *testing.T) {
	stubPassword(t, "password1", nil)
	auth := &fakeAuth{user: testUser()}

	_, err := run(t, auth, "typed@b.com\n", "register")
	require.NoError(t, err)
	assert.Equal(t, "typed@b.com", auth.gotEmail)
}

func TestRun_Login(t *testing.T) {
	stubPassword(t, "password1", nil)

	out, err := run(t, &fakeAuth{user: testUser()}, "", "login", "a@b.com")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "token-xyz\n"), out)

	_, err = run(t, &fakeAuth{err: common.ErrorUnauthorized}, "", "login", "a@b.com")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	boom := errors.New("db down")
	_, err = run(t, &fakeAuth{err: boom}, "", "login", "a@b.com")
	assert.ErrorIs(t, err, boom)
}

func TestRun_PasswordReadError(t *testing.T) {
	stubPassword(t, "", errors.New("not a terminal"))
	_, err := run(t, &fakeAuth{}, "", "login", "a@b.com")
	assert.ErrorContains(t, err, "read password")
}

func TestRun_VerifyShowDeactivate(t *testing.T) {
	auth := &fakeAuth{user: testUser()}

	out, err := run(t, auth, "", "verify", "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", auth.gotArg)
	assert.Equal(t, "a@b.com", decodeUser(t, out).Email)

	out, err = run(t, auth, "", "show", "a@b.com")
	require.NoError(t, err)
	assert.True(t, decodeUser(t, out).IsActive)

	out, err = run(t, auth, "", "deactivate", "id-1")
	require.NoError(t, err)
	assert.Equal(t, "user id-1 deactivated\n", out)

	_, err = run(t, &fakeAuth{err: common.ErrAlreadyInactive}, "", "deactivate", "id-1")
	assert.ErrorIs(t, err, common.ErrAlreadyInactive)

	_, err = run(t, &fakeAuth{err: common.ErrTokenExpired}, "", "verify", "tok")
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestRun_Usage(t *testing.T) {
	cases := [][]string{
		nil,
		{"nope"},
		{"verify"},
		{"show", "a", "b"},
		{"deactivate"},
		{"login", "a@b.com", "extra"},
	}
	for _, args := range cases {
		_, err := run(t, &fakeAuth{}, "", args...)
		assert.ErrorIs(t, err, ErrUsage, "%v", args)
	}

	out, err := run(t, &fakeAuth{}, "", "help")
	require.NoError(t, err)
	assert.Contains(t, out, "register|login")
}
