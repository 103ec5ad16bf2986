package pool

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
	"github.com/dmitrijs2005/shopscale-auth/internal/logging"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/models"
)

func testOptions() Options {
	return Options{MaxOpenConns: 4, MaxIdleConns: 4, RetryBase: time.Millisecond, RetryMaxDelay: 5 * time.Millisecond, MaxRetries: 3}
}

func newSQLitePool(t *testing.T) *Pool {
	t.Helper()
	p := New(testOptions(), logging.NewNopLogger())
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "auth.db")
	require.NoError(t, p.Init(context.Background(), dsn))
	require.NoError(t, p.Migrate(context.Background()))
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func newMockPool(t *testing.T) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	p := New(testOptions(), logging.NewNopLogger())
	p.openDB = func(driverName, dsn string) (*sql.DB, error) { return db, nil }
	require.NoError(t, p.Init(context.Background(), "postgres://mock/auth"))
	return p, mock
}

func newUser(id, email string) *models.User {
	return &models.User{ID: id, Email: email, HashedPassword: "h", IsActive: true, CreatedAt: time.Now()}
}

func countUsers(t *testing.T, p *Pool) int {
	t.Helper()
	var n int
	err := p.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
		return s.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	})
	require.NoError(t, err)
	return n
}

// withTimeout fails the test instead of hanging when fn blocks.
func withTimeout(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("operation did not finish within %s", d)
	}
}

func TestPool_NotInitialized(t *testing.T) {
	p := New(testOptions(), logging.NewNopLogger())
	ctx := context.Background()

	_, err := p.Acquire(ctx)
	assert.ErrorIs(t, err, common.ErrNotInitialized)

	err = p.WithSession(ctx, func(ctx context.Context, s *Session) error { return nil })
	assert.ErrorIs(t, err, common.ErrNotInitialized)

	assert.ErrorIs(t, p.Migrate(ctx), common.ErrNotInitialized)
	assert.ErrorIs(t, p.Close(ctx), common.ErrNotInitialized)
	assert.Equal(t, sql.DBStats{}, p.Stats())
}

func TestPool_InitTwice(t *testing.T) {
	p := newSQLitePool(t)
	err := p.Init(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "other.db"))
	assert.ErrorIs(t, err, common.ErrAlreadyInitialized)
}

func TestPool_InitBadDSNLeavesPoolUsable(t *testing.T) {
	p := New(testOptions(), logging.NewNopLogger())

	require.Error(t, p.Init(context.Background(), "mysql://nope"))

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "auth.db")
	require.NoError(t, p.Init(context.Background(), dsn))
	require.NoError(t, p.Close(context.Background()))
}

func TestWithSession_Commits(t *testing.T) {
	p := newSQLitePool(t)

	err := p.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
		_, err := s.Users().Create(ctx, newUser("u-1", "a@b.com"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countUsers(t, p))
	assert.Equal(t, 0, p.Stats().InUse, "session must be released")
}

func TestWithSession_RollsBackOnError(t *testing.T) {
	p := newSQLitePool(t)

	err := p.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
		if _, err := s.Users().Create(ctx, newUser("u-1", "a@b.com")); err != nil {
			return err
		}
		_, err := s.Users().Create(ctx, newUser("u-2", "A@B.com"))
		return err
	})
	require.ErrorIs(t, err, common.ErrDuplicateEmail)
	assert.Equal(t, 0, countUsers(t, p), "no partial commit")
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestWithSession_RollsBackOnPanic(t *testing.T) {
	p := newSQLitePool(t)

	require.PanicsWithValue(t, "kaput", func() {
		_ = p.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
			_, err := s.Users().Create(ctx, newUser("u-1", "a@b.com"))
			require.NoError(t, err)
			panic("kaput")
		})
	})
	assert.Equal(t, 0, countUsers(t, p))
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestWithSession_RollsBackOnCancel(t *testing.T) {
	p := newSQLitePool(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := p.WithSession(ctx, func(ctx context.Context, s *Session) error {
		if _, err := s.Users().Create(ctx, newUser("u-1", "a@b.com")); err != nil {
			return err
		}
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, countUsers(t, p))

	require.Eventually(t, func() bool { return p.Stats().InUse == 0 }, time.Second, 5*time.Millisecond)
}

func TestAcquire_CancelledContext(t *testing.T) {
	p := newSQLitePool(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// the failed acquisition must not block Close
	withTimeout(t, time.Second, func() { require.NoError(t, p.Close(context.Background())) })
}

func TestSession_ReleaseAfterCommitIsNoop(t *testing.T) {
	p := newSQLitePool(t)
	ctx := context.Background()

	s, err := p.Acquire(ctx)
	require.NoError(t, err)
	_, err = s.Users().Create(ctx, newUser("u-1", "a@b.com"))
	require.NoError(t, err)

	require.NoError(t, s.Commit())
	s.Release()
	require.NoError(t, s.Rollback())

	assert.Equal(t, 1, countUsers(t, p))
}

func TestSession_ReleaseReturnsConnection(t *testing.T) {
	p := newSQLitePool(t)
	ctx := context.Background()

	s1, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer s1.Release()

	assert.Equal(t, 1, p.Stats().InUse)
	s1.Release()
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestClose_AcquireAfterCloseFailsFast(t *testing.T) {
	p := New(testOptions(), logging.NewNopLogger())
	require.NoError(t, p.Init(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, p.Close(context.Background()))

	withTimeout(t, time.Second, func() {
		_, err := p.Acquire(context.Background())
		assert.ErrorIs(t, err, common.ErrNotInitialized)
	})
	assert.ErrorIs(t, p.Close(context.Background()), common.ErrNotInitialized, "second close")
	assert.ErrorIs(t, p.Migrate(context.Background()), common.ErrNotInitialized)
	assert.ErrorIs(t, p.Init(context.Background(), "sqlite://x.db"), common.ErrAlreadyInitialized)
}

func TestClose_WaitsForInflightSessions(t *testing.T) {
	p := New(testOptions(), logging.NewNopLogger())
	require.NoError(t, p.Init(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "auth.db")))

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- p.Close(context.Background()) }()

	select {
	case <-closed:
		t.Fatal("Close returned while a session was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, common.ErrNotInitialized, "closing pool rejects new sessions")

	s.Release()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the session was released")
	}
}

func TestClose_DrainBoundedByContext(t *testing.T) {
	p := New(testOptions(), logging.NewNopLogger())
	require.NoError(t, p.Init(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "auth.db")))

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer s.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	withTimeout(t, time.Second, func() { require.NoError(t, p.Close(ctx)) })
}

func TestAcquire_RetriesTransientBeginErrors(t *testing.T) {
	p, mock := newMockPool(t)

	mock.ExpectBegin().WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	mock.ExpectBegin()
	mock.ExpectRollback()

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)
	s.Release()
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquire_DoesNotRetryApplicationErrors(t *testing.T) {
	p, mock := newMockPool(t)

	mock.ExpectBegin().WillReturnError(errors.New("permission denied for database"))

	_, err := p.Acquire(context.Background())
	require.ErrorContains(t, err, "permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquire_RetriesAreBounded(t *testing.T) {
	p, mock := newMockPool(t)

	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	for i := 0; i < 4; i++ {
		mock.ExpectBegin().WillReturnError(refused)
	}

	_, err := p.Acquire(context.Background())
	require.ErrorContains(t, err, "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_ConcurrentSessions(t *testing.T) {
	p := newSQLitePool(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- p.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
				_, err := s.Users().Create(ctx, newUser(
					"u-"+string(rune('a'+i)), string(rune('a'+i))+"@example.com"))
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 20, countUsers(t, p))
	assert.Equal(t, 0, p.Stats().InUse)
}
