package builtin

import (
	"context"
	"log/slog"

	"github.com/weftlabs/weft/operation"
)

// NotifyLog emits the step's input as a structured log record. Config:
// optional "level" (debug|info|warn|error, default info), optional
// "message". Writes no state fields.
type NotifyLog struct {
	logger *slog.Logger
}

func NewNotifyLog(logger *slog.Logger) *NotifyLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyLog{logger: logger}
}

func (n *NotifyLog) Kind() string { return "notify.log" }

func (n *NotifyLog) Execute(ctx context.Context, req *operation.Request) (*operation.Result, error) {
	level := slog.LevelInfo
	switch optString(req.Config, "level", "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("workflow", req.Workflow),
		slog.String("execution", req.Execution),
		slog.String("step", req.Step),
	}
	for k, v := range req.Input {
		attrs = append(attrs, slog.Any(k, v))
	}
	n.logger.LogAttrs(ctx, level, optString(req.Config, "message", "workflow notification"), attrs...)

	return &operation.Result{}, nil
}
