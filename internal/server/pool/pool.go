// Package pool owns the process's bounded set of database connections and
// hands out scoped sessions. A Pool is constructed explicitly and passed to
// its collaborators; there is no package-level instance.
//
// Lifecycle: New -> Init -> (Acquire/WithSession)* -> Close. Every operation
// before Init or after Close fails with common.ErrNotInitialized.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
	"github.com/dmitrijs2005/shopscale-auth/internal/dbx"
	"github.com/dmitrijs2005/shopscale-auth/internal/logging"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/config"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/repositories/repomanager"
)

// Options bound the pool and its retry policy for transient errors.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	MaxRetries      uint64
}

// DefaultOptions are used for any zero field.
var DefaultOptions = Options{
	MaxOpenConns:    10,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
	PingTimeout:     5 * time.Second,
	RetryBase:       50 * time.Millisecond,
	RetryMaxDelay:   2 * time.Second,
	MaxRetries:      3,
}

// OptionsFromConfig maps the DB settings of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions
	opts.MaxOpenConns = cfg.DBMaxOpenConns
	opts.MaxIdleConns = cfg.DBMaxIdleConns
	opts.ConnMaxLifetime = cfg.DBConnMaxLifetime()
	return opts
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = DefaultOptions.MaxOpenConns
	}
	if o.MaxIdleConns < 0 || o.MaxIdleConns > o.MaxOpenConns {
		o.MaxIdleConns = o.MaxOpenConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = DefaultOptions.ConnMaxLifetime
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = DefaultOptions.PingTimeout
	}
	if o.RetryBase <= 0 {
		o.RetryBase = DefaultOptions.RetryBase
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = DefaultOptions.RetryMaxDelay
	}
	return o
}

type state int

const (
	stateNew state = iota
	stateOpen
	stateClosed
)

// Pool is safe for concurrent use. Sessions it hands out are not.
type Pool struct {
	mu       sync.RWMutex
	state    state
	db       *sql.DB
	manager  repomanager.RepositoryManager
	inflight sync.WaitGroup

	opts   Options
	logger logging.Logger

	// openDB is a seam for tests.
	openDB func(driverName, dsn string) (*sql.DB, error)
}

// New returns an unopened Pool; call Init before use. Zero fields of opts
// fall back to DefaultOptions.
func New(opts Options, logger logging.Logger) *Pool {
	return &Pool{
		opts:   opts.withDefaults(),
		logger: logger.With("component", "pool"),
		openDB: sql.Open,
	}
}

// Init opens the connection pool for dsn and verifies it with a ping,
// retrying transient failures. It may succeed only once per Pool.
func (p *Pool) Init(ctx context.Context, dsn string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateNew {
		return common.ErrAlreadyInitialized
	}

	dialect, driverDSN, err := repomanager.ParseDSN(dsn)
	if err != nil {
		return err
	}
	manager, err := repomanager.New(dialect)
	if err != nil {
		return err
	}

	maxOpen, maxIdle := p.opts.MaxOpenConns, p.opts.MaxIdleConns
	if dialect == repomanager.DialectSQLite {
		if driverDSN == ":memory:" {
			// every connection would see its own empty database
			maxOpen, maxIdle = 1, 1
		} else {
			driverDSN = sqliteDSN(driverDSN)
		}
	}

	db, err := p.openDB(manager.DriverName(), driverDSN)
	if err != nil {
		return fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(p.opts.ConnMaxLifetime)

	err = p.retry(ctx, "ping", func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, p.opts.PingTimeout)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("db ping error: %w", err)
	}

	p.db, p.manager, p.state = db, manager, stateOpen
	p.logger.Info(ctx, "connection pool initialized", "dialect", string(dialect), "max_open", maxOpen, "max_idle", maxIdle)
	return nil
}

// Migrate brings the schema up to date for the pool's dialect.
func (p *Pool) Migrate(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != stateOpen {
		return common.ErrNotInitialized
	}
	if err := p.manager.RunMigrations(ctx, p.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// Acquire begins a session bound to ctx. The caller owns it exclusively and
// must finish it with Commit, Rollback or Release; a deferred Release is
// the usual way to guarantee that. If ctx is cancelled the transaction is
// rolled back by database/sql.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.RLock()
	if p.state != stateOpen {
		p.mu.RUnlock()
		return nil, common.ErrNotInitialized
	}
	p.inflight.Add(1)
	db, manager := p.db, p.manager
	p.mu.RUnlock()

	var tx *sql.Tx
	err := p.retry(ctx, "begin", func(ctx context.Context) error {
		var err error
		tx, err = db.BeginTx(ctx, nil)
		return err
	})
	if err != nil {
		p.inflight.Done()
		return nil, fmt.Errorf("begin session: %w", err)
	}

	return newSession(tx, manager, p.inflight.Done), nil
}

// WithSession runs fn inside one session: commit when fn returns nil,
// rollback on error, panic or cancellation. Panics are rethrown.
func (p *Pool) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer s.Release()

	return dbx.Run(ctx, s, func(ctx context.Context, _ dbx.DBTX) error {
		return fn(ctx, s)
	})
}

// Close stops new acquisitions immediately, waits for in-flight sessions to
// be released (or for ctx to end) and disposes of all connections.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.state != stateOpen {
		p.mu.Unlock()
		return common.ErrNotInitialized
	}
	p.state = stateClosed
	db := p.db
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		p.logger.Warn(ctx, "closing pool with sessions still in flight", "error", ctx.Err())
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("db close error: %w", err)
	}
	p.logger.Info(ctx, "connection pool closed")
	return nil
}

// Stats reports database/sql pool statistics. Zero before Init.
func (p *Pool) Stats() sql.DBStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

// retry runs fn with bounded exponential backoff, retrying only errors that
// isTransient accepts.
func (p *Pool) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := retry.NewExponential(p.opts.RetryBase)
	b = retry.WithCappedDuration(p.opts.RetryMaxDelay, b)
	b = retry.WithMaxRetries(p.opts.MaxRetries, b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !isTransient(err) {
			return err
		}
		p.logger.Warn(ctx, "transient database error", "op", op, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_txlock=immediate"
}
