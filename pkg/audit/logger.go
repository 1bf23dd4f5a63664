package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lookup reads one request-scoped value, such as the actor or client IP.
type Lookup func(context.Context) (string, bool)

// Logger turns flag and registration actions into events and hands them to a
// Storage. Request-scoped fields are filled by the configured lookups.
type Logger struct {
	storage Storage
	actor   Lookup
	reqID   Lookup
	ip      Lookup
	now     func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithActorExtractor sets where the acting principal comes from. Without
// one, or when it finds nothing, events are attributed to "system".
func WithActorExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) { l.actor = fn }
}

func WithRequestIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) { l.reqID = fn }
}

func WithIPExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) { l.ip = fn }
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger panics on nil storage.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: nil storage")
	}
	l := &Logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action at info severity.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	return l.record(ctx, l.base(ctx, action), opts)
}

// LogError records a failed action at warning severity; opts may raise it.
func (l *Logger) LogError(ctx context.Context, action string, cause error, opts ...EventOption) error {
	e := l.base(ctx, action)
	e.Result, e.Severity = ResultError, SeverityWarning
	if cause != nil {
		e.Error = cause.Error()
	}
	return l.record(ctx, e, opts)
}

func (l *Logger) record(ctx context.Context, e Event, opts []EventOption) error {
	for _, opt := range opts {
		opt(&e)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, e)
}

func (l *Logger) base(ctx context.Context, action string) Event {
	e := Event{
		ID:        uuid.NewString(),
		Action:    action,
		Actor:     "system",
		Severity:  SeverityInfo,
		Result:    ResultSuccess,
		CreatedAt: l.now().UTC(),
	}
	if v := lookup(ctx, l.actor); v != "" {
		e.Actor = v
	}
	e.RequestID = lookup(ctx, l.reqID)
	e.IP = lookup(ctx, l.ip)
	return e
}

func lookup(ctx context.Context, fn Lookup) string {
	if fn == nil {
		return ""
	}
	v, _ := fn(ctx)
	return v
}
