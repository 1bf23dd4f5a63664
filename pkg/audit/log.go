package audit

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// LogStorage writes events to a structured logger. Deployments without
// Postgres use it so the trail ends up in the log pipeline instead of memory.
type LogStorage struct {
	log *slog.Logger
}

func NewLogStorage(l *slog.Logger) *LogStorage {
	if l == nil {
		l = logger.Nop()
	}
	return &LogStorage{log: l.With(logger.Component("audit"))}
}

func (s *LogStorage) Store(ctx context.Context, e Event) error {
	level := slog.LevelInfo
	switch e.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityCritical:
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("audit_id", e.ID),
		slog.String("action", e.Action),
		logger.Actor(e.Actor),
		slog.String("severity", string(e.Severity)),
		slog.String("result", string(e.Result)),
	}
	if e.Resource != "" {
		attrs = append(attrs, slog.String("resource", e.Resource), slog.String("resource_id", e.ResourceID))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}
	if e.IP != "" {
		attrs = append(attrs, logger.IP(e.IP))
	}
	if len(e.Details) > 0 {
		attrs = append(attrs, slog.Any("details", e.Details))
	}
	s.log.LogAttrs(ctx, level, "audit event", attrs...)
	return nil
}

func (s *LogStorage) StoreBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		_ = s.Store(ctx, e)
	}
	return nil
}
