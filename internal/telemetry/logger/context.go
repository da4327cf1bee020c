package logger

import "context"

type contextKey string

const (
	loggerKey  contextKey = "amrsnap.logger"
	queryIDKey contextKey = "amrsnap.query_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithQueryID tags the context with a reconstruction query ID.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryIDKey, id)
}

// QueryIDFromContext extracts the query ID from context.
func QueryIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(queryIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also adds the query ID.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if id := QueryIDFromContext(ctx); id != "" {
		l = l.With("query_id", id)
	}
	return l
}
