package abuse_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/abuse"
	"github.com/dmitrymomot/flaggate/pkg/analytics"
	"github.com/dmitrymomot/flaggate/pkg/async"
	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/ratelimit"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flagSwitch is a FlagChecker with a single toggle.
type flagSwitch struct{ on atomic.Bool }

func newFlagSwitch(on bool) *flagSwitch {
	f := &flagSwitch{}
	f.on.Store(on)
	return f
}

func (f *flagSwitch) IsEnabled(context.Context, string, feature.EvalContext) bool {
	return f.on.Load()
}

type recorder struct {
	mu     sync.Mutex
	events []analytics.RegistrationEvent
}

func (r *recorder) RecordRegistration(e analytics.RegistrationEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Outcome
	}
	return out
}

type disabler struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *disabler) Disable(ctx context.Context, key, reason, _ string) (*async.Future[struct{}], error) {
	d.mu.Lock()
	d.calls = append(d.calls, key)
	d.mu.Unlock()
	return async.Async(ctx, struct{}{}, func(context.Context, struct{}) (struct{}, error) {
		return struct{}{}, nil
	}), d.err
}

func (d *disabler) keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func newMemoryStore(t *testing.T, c *clock) *ratelimit.MemoryStore {
	t.Helper()
	s := ratelimit.NewMemoryStore(ratelimit.WithClock(c.Now))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// human builds a clean browser attempt from ip.
func human(ip string) abuse.Attempt {
	h := http.Header{}
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return abuse.Attempt{
		IP:          ip,
		Fingerprint: "fp-" + ip,
		Email:       "jane@company.com",
		UserAgent:   browserUA,
		Headers:     h,
	}
}

func ipN(i int) string { return fmt.Sprintf("198.51.100.%d", i) }
