package repomanager

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/shopscale-auth/internal/dbx"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/migrations"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/repositories/users"
)

// SQLiteRepositoryManager vends SQLite-backed repositories for local
// development and single-node deployments.
type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Dialect() Dialect { return DialectSQLite }

func (m *SQLiteRepositoryManager) DriverName() string { return "sqlite" }

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return runGoose(ctx, db, migrations.SQLite, "sqlite3", "sqlite")
}
