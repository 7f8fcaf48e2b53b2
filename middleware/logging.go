package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs step start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) error {
		logger.Debug("step started",
			slog.String("workflow", inv.Workflow),
			slog.String("execution", inv.Execution),
			slog.String("step", inv.Step),
			slog.String("kind", inv.Kind),
			slog.Int("attempt", inv.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("step failed",
				slog.String("workflow", inv.Workflow),
				slog.String("execution", inv.Execution),
				slog.String("step", inv.Step),
				slog.Int("attempt", inv.Attempt),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("step completed",
				slog.String("workflow", inv.Workflow),
				slog.String("execution", inv.Execution),
				slog.String("step", inv.Step),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
