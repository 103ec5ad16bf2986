package repomanager

import (
	"context"
	"database/sql"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func runGoose(ctx context.Context, db *sql.DB, fsys fs.FS, dialect, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, dir)
}
