package analytics

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// LogSink writes events as structured debug logs. It is the fallback when no
// analytics backend is configured.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = logger.Nop()
	}
	return &LogSink{log: l.With(logger.Component("analytics"))}
}

func (s *LogSink) RecordEvaluation(ctx context.Context, e EvaluationEvent) error {
	s.log.DebugContext(ctx, "flag evaluated",
		logger.FlagKey(e.FeatureKey),
		logger.Reason(e.Reason),
		slog.Bool("enabled", e.Enabled),
		slog.Bool("from_cache", e.FromCache),
		logger.Latency(e.Latency),
	)
	return nil
}

func (s *LogSink) RecordRegistration(ctx context.Context, e RegistrationEvent) error {
	s.log.DebugContext(ctx, "registration checked",
		logger.IP(e.IP),
		slog.Bool("allowed", e.Allowed),
		slog.String("outcome", e.Outcome),
		logger.Score(e.Score),
		logger.Mode(e.Mode),
	)
	return nil
}
