// Package repomanager vends dialect-specific repositories bound to a
// dbx.DBTX and runs the embedded schema migrations for that dialect.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/shopscale-auth/internal/dbx"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/repositories/users"
)

// Dialect names the SQL flavour behind a DSN.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type RepositoryManager interface {
	Dialect() Dialect
	// DriverName is the database/sql driver registered for the dialect.
	DriverName() string
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}

// ParseDSN works out the dialect for dsn and returns the DSN in the form the
// driver expects. SQLAlchemy-style driver suffixes ("postgresql+asyncpg://")
// are stripped and "sqlite://" prefixes are reduced to a file path.
func ParseDSN(dsn string) (Dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", fmt.Errorf("empty database url")
	}

	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return DialectSQLite, dsn, nil
	}

	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "", "", fmt.Errorf("database url has no scheme")
	}
	base, _, _ := strings.Cut(strings.ToLower(scheme), "+")

	switch base {
	case "postgres", "postgresql":
		u, err := url.Parse("postgres://" + rest)
		if err != nil {
			return "", "", fmt.Errorf("parse database url: %w", err)
		}
		return DialectPostgres, u.String(), nil
	case "sqlite", "sqlite3":
		if rest == "" {
			return "", "", fmt.Errorf("sqlite url has no path")
		}
		return DialectSQLite, rest, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme %q", scheme)
	}
}

// New returns the manager for dialect.
func New(dialect Dialect) (RepositoryManager, error) {
	switch dialect {
	case DialectPostgres:
		return NewPostgresRepositoryManager(), nil
	case DialectSQLite:
		return NewSQLiteRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}
