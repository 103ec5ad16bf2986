package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/shopscale-auth/internal/dbx"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/migrations"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories (pgx driver).
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Dialect() Dialect { return DialectPostgres }

func (m *PostgresRepositoryManager) DriverName() string { return "pgx" }

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// RunMigrations applies the embedded postgres migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return runGoose(ctx, db, migrations.Postgres, "pgx", "postgres")
}
