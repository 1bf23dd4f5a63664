// Package logger builds log/slog loggers for flaggate services.
//
// New applies functional options (level, format, output, static attributes and
// context extractors) and wraps the resulting handler in a decorator that pulls
// request scoped values such as the request id or deployment environment out of
// the context on every log call.
//
//	log := logger.New(
//		logger.WithEnvironment("production", "flaggate"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.WarnContext(ctx, "circuit opened", logger.FlagKey("new-ui"))
//
// The attribute helpers (FlagKey, Reason, IP, Score, Mode, ...) keep attribute
// names consistent across packages so log queries do not depend on who wrote
// the line.
package logger
