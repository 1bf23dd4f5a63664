package main

import (
	"time"

	"github.com/dmitrymomot/flaggate/pkg/abuse"
	"github.com/dmitrymomot/flaggate/pkg/httpserver"
	"github.com/dmitrymomot/flaggate/pkg/opensearch"
	"github.com/dmitrymomot/flaggate/pkg/pg"
	"github.com/dmitrymomot/flaggate/pkg/redis"
)

type appConfig struct {
	Env        string `env:"APP_ENV" envDefault:"development"`
	Service    string `env:"SERVICE_NAME" envDefault:"flaggate"`
	InstanceID string `env:"INSTANCE_ID"`

	// FlagsFile seeds a read-only flag set when Postgres is not configured.
	FlagsFile      string        `env:"FLAGS_FILE" envDefault:"flags.yaml"`
	ReloadInterval time.Duration `env:"FLAGS_RELOAD_INTERVAL" envDefault:"1m"`

	CacheTTL         time.Duration `env:"ENGINE_CACHE_TTL" envDefault:"30s"`
	CacheSize        int           `env:"ENGINE_CACHE_SIZE" envDefault:"100000"`
	BreakerThreshold int           `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerOpen      time.Duration `env:"BREAKER_OPEN_DURATION" envDefault:"60s"`

	TrustedProxies     []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	RegistrationLimit  int           `env:"REGISTRATION_RATE_LIMIT" envDefault:"30"`
	RegistrationWindow time.Duration `env:"REGISTRATION_RATE_WINDOW" envDefault:"1m"`
	PendingTTL         time.Duration `env:"ABUSE_PENDING_TTL" envDefault:"24h"`
	DisposableDomains  []string      `env:"ABUSE_DISPOSABLE_DOMAINS" envSeparator:","`

	AnalyticsBuffer  int `env:"ANALYTICS_BUFFER" envDefault:"4096"`
	AnalyticsWorkers int `env:"ANALYTICS_WORKERS" envDefault:"2"`

	HTTP       httpserver.Config
	Redis      redis.Config
	PG         pg.Config
	OpenSearch opensearch.Config
	Abuse      abuse.Thresholds
}
