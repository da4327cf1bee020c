package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the application logger interface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// Output is the output writer (defaults to os.Stderr).
	Output io.Writer
	// AddSource adds source file information to log entries.
	AddSource bool
}

// DefaultConfig returns a default logger configuration. The CLI writes
// results to stdout, so logs go to stderr in text form.
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: "text",
		Output: os.Stderr,
	}
}

// slogLogger adapts *slog.Logger to Logger. Its methods come from the
// embedded logger; only With needs to rewrap.
type slogLogger struct {
	*slog.Logger
}

func (l slogLogger) With(args ...any) Logger {
	return slogLogger{l.Logger.With(args...)}
}

// New creates a logger writing cfg.Format records at cfg.Level or above.
func New(cfg Config) (Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(out, opts)
	default:
		h = slog.NewTextHandler(out, opts)
	}
	return slogLogger{slog.New(h)}, nil
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return slogLogger{slog.New(slog.DiscardHandler)}
}

// Slog returns the *slog.Logger behind l, for libraries that take one
// directly. Loggers not created by this package get slog.Default().
func Slog(l Logger) *slog.Logger {
	if sl, ok := l.(slogLogger); ok {
		return sl.Logger
	}
	return slog.Default()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defaultLogger atomic.Value // Logger

func init() {
	l, _ := New(DefaultConfig())
	defaultLogger.Store(&l)
}

// SetDefault replaces the logger returned by Default and used by contexts
// that carry none.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger.Store(&l)
	}
}

// Default returns the process-wide logger.
func Default() Logger {
	return *defaultLogger.Load().(*Logger)
}
