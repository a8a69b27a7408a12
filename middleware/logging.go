package middleware

import (
	"log/slog"
	"time"

	"github.com/broady/methodscan"
)

// LoggingInterceptor logs every invocation with its duration. Failed calls
// are logged at error level with the code the client will see; codes other
// than internal are logged at warn level.
func LoggingInterceptor(logger *slog.Logger) methodscan.UnaryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx methodscan.Context, req any, handler methodscan.HandlerFunc) (any, error) {
		start := time.Now()
		logger.DebugContext(ctx, "invocation started",
			slog.String("endpoint", ctx.EndpointID()),
			slog.String("method", ctx.Method()),
		)

		res, err := handler(ctx, req)
		attrs := []any{
			slog.String("endpoint", ctx.EndpointID()),
			slog.Duration("duration", time.Since(start)),
		}
		if err == nil {
			logger.InfoContext(ctx, "invocation completed", attrs...)
			return res, nil
		}

		code := methodscan.DefaultErrorTransformer(err).Code
		attrs = append(attrs, slog.String("code", string(code)), slog.Any("error", err))
		if code == methodscan.CodeInternal {
			logger.ErrorContext(ctx, "invocation failed", attrs...)
		} else {
			logger.WarnContext(ctx, "invocation failed", attrs...)
		}
		return res, err
	}
}
