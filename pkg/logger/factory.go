package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrymomot/flaggate/pkg/environment"
)

// Format selects the slog handler New builds.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type settings struct {
	level   slog.Level
	format  Format
	out     io.Writer
	static  []slog.Attr
	extract []ContextExtractor
}

// Option adjusts New.
type Option func(*settings)

func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithFormat panics on anything but FormatJSON or FormatText so a typo in
// LOG_FORMAT stops the process at startup.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Sprintf("logger: unknown format %q", f))
	}
	return func(s *settings) { s.format = f }
}

func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

// WithAttr attaches attrs to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.static = append(s.static, attrs...) }
}

// WithContextExtractors adds per-record attributes read from the context.
// Nil extractors are skipped.
func WithContextExtractors(fns ...ContextExtractor) Option {
	return func(s *settings) {
		for _, fn := range fns {
			if fn != nil {
				s.extract = append(s.extract, fn)
			}
		}
	}
}

// WithEnvironment tunes output for a deployment: production and staging get
// JSON at info, anything else text at debug. The env and service names are
// attached to every record.
func WithEnvironment(env, service string) Option {
	return func(s *settings) {
		switch env {
		case string(environment.Production), "prod", string(environment.Staging), "stage":
			s.level, s.format = slog.LevelInfo, FormatJSON
		default:
			s.level, s.format = slog.LevelDebug, FormatText
			env = string(environment.Development)
		}
		if service != "" {
			s.static = append(s.static, slog.String("service", service))
		}
		s.static = append(s.static, slog.String("env", env))
	}
}

// New builds a logger writing JSON to stdout at info level unless opts say
// otherwise.
func New(opts ...Option) *slog.Logger {
	s := settings{level: slog.LevelInfo, format: FormatJSON, out: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}

	ho := &slog.HandlerOptions{Level: s.level}
	var h slog.Handler = slog.NewJSONHandler(s.out, ho)
	if s.format == FormatText {
		h = slog.NewTextHandler(s.out, ho)
	}
	if len(s.static) > 0 {
		h = h.WithAttrs(s.static)
	}
	return slog.New(withExtractors(h, s.extract))
}

func SetAsDefault(l *slog.Logger) { slog.SetDefault(l) }

// Nop discards everything. Packages fall back to it when no logger is given.
func Nop() *slog.Logger { return slog.New(discard{}) }

type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (d discard) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discard) WithGroup(string) slog.Handler           { return d }
