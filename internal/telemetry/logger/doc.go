// Package logger provides structured logging for amrsnap.
//
// It wraps log/slog:
//
//   - logger.go: Logger interface, text/JSON handlers, process default
//   - context.go: logger and query ID propagation through context.Context
//
// Components that take a *slog.Logger directly (the badger header cache)
// get one through Slog.
package logger
