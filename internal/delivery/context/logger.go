package context

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
)

// KeyLogger is the key for storing request-scoped logger in context.
const KeyLogger ContextKey = "logger"

// GetLogger returns the request-scoped logger, or nil when none was attached.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, _ := ctx.Value(KeyLogger).(*slog.Logger)

	return logger
}

// GetLoggerOrDefault returns the request-scoped logger, or fallback.
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := GetLogger(ctx); logger != nil {
		return logger
	}

	return fallback
}

// WithLogger returns a new context with the logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, KeyLogger, logger)
}

// AddLoggerAttrs rebinds the request-scoped logger with attrs so later log
// lines of the request carry them. Requests without a scoped logger are left alone.
func AddLoggerAttrs(c echo.Context, attrs ...any) {
	req := c.Request()
	logger := GetLogger(req.Context())
	if logger == nil {
		return
	}

	c.SetRequest(req.WithContext(WithLogger(req.Context(), logger.With(attrs...))))
}
