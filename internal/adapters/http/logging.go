package http

import (
	"context"
	"log/slog"
)

const (
	serviceName = "commerce-auth"
)

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// logHTTPOperationError records the full error server side. Clients only ever
// see the mapped message.
func logHTTPOperationError(ctx context.Context, operation string, mapped apiError, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", mapped.status,
		"error_code", mapped.code,
		"message", mapped.message,
		"request_id", requestIDFromContext(ctx),
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	if mapped.status >= 500 {
		httpLogger().ErrorContext(ctx, "http operation failed", fields...)
		return
	}
	httpLogger().WarnContext(ctx, "http operation failed", fields...)
}
