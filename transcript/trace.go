package transcript

import (
	"context"
	"errors"
	"time"

	"github.com/probelabs/probe/logging"
)

// TraceAction wraps a long-running action with structured enter/exit logging.
// The enter record carries the category and message; the exit record adds the
// outcome (ok, cancelled or error) and the elapsed duration. The wrapped
// error is returned unchanged.
func TraceAction(logger logging.Logger, category, message string, fn func() error) error {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	logger.Debug("trace.enter", "category", category, "message", message)
	start := time.Now()

	err := fn()
	elapsed := time.Since(start)

	switch {
	case err == nil:
		logger.Debug("trace.exit", "category", category, "message", message, "outcome", "ok", "duration_ms", elapsed.Milliseconds())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.Debug("trace.exit", "category", category, "message", message, "outcome", "cancelled", "duration_ms", elapsed.Milliseconds())
	default:
		logger.Warn("trace.exit", "category", category, "message", message, "outcome", "error", "error", err.Error(), "duration_ms", elapsed.Milliseconds())
	}

	return err
}

// TraceActionValue is the valued variant of TraceAction.
func TraceActionValue[T any](logger logging.Logger, category, message string, fn func() (T, error)) (T, error) {
	var out T
	err := TraceAction(logger, category, message, func() error {
		var innerErr error
		out, innerErr = fn()
		return innerErr
	})
	return out, err
}
