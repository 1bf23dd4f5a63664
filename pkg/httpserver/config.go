package httpserver

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// Config is the env-loaded server configuration. Zero durations disable the
// corresponding net/http timeout, except ShutdownTimeout.
type Config struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type settings struct {
	Config
	log *slog.Logger
}

func defaults() settings {
	return settings{
		Config: Config{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		log: logger.Nop(),
	}
}

// merge copies the non-zero fields of c over the current values.
func (s *settings) merge(c Config) {
	if c.Addr != "" {
		s.Addr = c.Addr
	}
	for dst, src := range map[*time.Duration]time.Duration{
		&s.ReadTimeout:       c.ReadTimeout,
		&s.ReadHeaderTimeout: c.ReadHeaderTimeout,
		&s.WriteTimeout:      c.WriteTimeout,
		&s.IdleTimeout:       c.IdleTimeout,
		&s.ShutdownTimeout:   c.ShutdownTimeout,
	} {
		if src > 0 {
			*dst = src
		}
	}
}

// Option tweaks a Server before it runs.
type Option func(*settings)

// WithAddr sets the listen address; port 0 binds a free port.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: empty listen address")
	}
	return func(s *settings) { s.Addr = addr }
}

// WithShutdownTimeout bounds how long in-flight requests may drain.
func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("httpserver: shutdown timeout must be positive")
	}
	return func(s *settings) { s.ShutdownTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// NewFromConfig applies cfg over the defaults, then opts.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	s := defaults()
	s.merge(cfg)
	return build(s, opts)
}
