// Package logging defines the structured-logging interface used across the
// auth core. The slog-backed implementation lives in slog.go.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "pool initialized", "dialect", "postgres", "max_open", 10)
//
// Never pass passwords, password hashes, tokens or secret keys as values.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures that need operator attention.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
