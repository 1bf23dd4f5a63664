package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one request-scoped attribute out of ctx, such as the
// request ID or the evaluation environment.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// contextHandler appends extracted attributes at Handle time, so loggers
// built once at startup still carry per-request fields.
type contextHandler struct {
	slog.Handler
	extract []ContextExtractor
}

func withExtractors(h slog.Handler, extract []ContextExtractor) slog.Handler {
	if len(extract) == 0 {
		return h
	}
	return contextHandler{Handler: h, extract: extract}
}

func (h contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, fn := range h.extract {
		if attr, ok := fn(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.Handler.Handle(ctx, rec)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs), extract: h.extract}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name), extract: h.extract}
}
