package pool

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/shopscale-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/repositories/users"
)

// Session is a transaction pinned to one pooled connection. It satisfies
// dbx.Tx. Commit, Rollback and Release may be called in any combination;
// only the first one finishes the transaction and returns the lease.
type Session struct {
	*sql.Tx

	manager repomanager.RepositoryManager
	once    sync.Once
	release func()
}

func newSession(tx *sql.Tx, manager repomanager.RepositoryManager, release func()) *Session {
	return &Session{Tx: tx, manager: manager, release: release}
}

// Users returns the users repository bound to this session.
func (s *Session) Users() users.Repository {
	return s.manager.Users(s.Tx)
}

// Commit makes the session's writes durable and returns the connection to
// the pool, even when the commit fails.
func (s *Session) Commit() error {
	defer s.done()
	return s.Tx.Commit()
}

// Rollback aborts the transaction. Rolling back an already finished
// session is not an error.
func (s *Session) Rollback() error {
	defer s.done()
	err := s.Tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Release rolls back unless the session was already committed or rolled
// back. Meant to be deferred right after Acquire.
func (s *Session) Release() {
	_ = s.Rollback()
}

func (s *Session) done() {
	s.once.Do(s.release)
}
