package abuse

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/audit"
)

// Option configures a Protection.
type Option func(*Protection)

// WithThresholds replaces DefaultThresholds.
func WithThresholds(t Thresholds) Option {
	return func(p *Protection) { p.t = t }
}

// WithDisabler lets emergency mode turn self-registration off through the
// flag engine's emergency path.
func WithDisabler(d Disabler) Option {
	return func(p *Protection) { p.disabler = d }
}

// WithSelfRegistrationKey sets the flag gating registration. Defaults to
// feature.DefaultSelfRegistrationKey.
func WithSelfRegistrationKey(key string) Option {
	return func(p *Protection) {
		if key != "" {
			p.selfRegKey = key
		}
	}
}

// WithPendingStore sets the store cleared on emergency.
func WithPendingStore(s PendingStore) Option {
	return func(p *Protection) { p.pending = s }
}

func WithAudit(l *audit.Logger) Option {
	return func(p *Protection) { p.audit = l }
}

func WithRecorder(r RegistrationRecorder) Option {
	return func(p *Protection) { p.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Protection) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock replaces time.Now for the scorer and the escalation watchdog.
func WithClock(now func() time.Time) Option {
	return func(p *Protection) {
		if now != nil {
			p.now = now
		}
	}
}

// WithDisposableDomains adds domains to the built-in disposable list.
func WithDisposableDomains(domains ...string) Option {
	return func(p *Protection) { p.extraDomains = append(p.extraDomains, domains...) }
}
