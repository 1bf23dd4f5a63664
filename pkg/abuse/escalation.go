package abuse

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/logger"
	"github.com/dmitrymomot/flaggate/pkg/ratelimit"
	"github.com/dmitrymomot/flaggate/pkg/statemachine"
)

// Escalation events.
const (
	EventVelocity   = statemachine.StringEvent("unique_ip_velocity")
	EventReenabled  = statemachine.StringEvent("registration_reenabled")
	velocityKeyBase = "reg:velocity:"
)

// Velocity is the data carried by EventVelocity: unique IPs seen so far in
// the current window and the peak of the previous window.
type Velocity struct {
	Current  int64
	Previous int64
}

// EmergencyFunc runs when the watchdog enters emergency mode. An error keeps
// the previous mode so the next observation retries.
type EmergencyFunc func(ctx context.Context, v Velocity) error

// Escalation is the watchdog that moves the protection mode between normal,
// escalated and emergency based on unique IPs per window.
//
//	normal    -> emergency  Current >= EmergencyAt (runs the emergency func)
//	normal    -> escalated  Current >= EscalateAt
//	escalated -> emergency  Current >= EmergencyAt (runs the emergency func)
//	escalated -> normal     Current and Previous < DeescalateBelow
//	emergency -> escalated  EventReenabled
type Escalation struct {
	store ratelimit.Store
	t     Thresholds
	sm    statemachine.StateMachine
	now   func() time.Time
	log   *slog.Logger

	mu       sync.Mutex
	bucket   int64
	peak     int64
	prevPeak int64
}

// EscalationOption configures an Escalation.
type EscalationOption func(*escalationConfig)

type escalationConfig struct {
	now         func() time.Time
	log         *slog.Logger
	onEmergency EmergencyFunc
}

// WithEscalationClock replaces time.Now.
func WithEscalationClock(now func() time.Time) EscalationOption {
	return func(c *escalationConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEscalationLogger logs mode changes.
func WithEscalationLogger(l *slog.Logger) EscalationOption {
	return func(c *escalationConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// OnEmergency sets the action run when entering emergency mode.
func OnEmergency(fn EmergencyFunc) EscalationOption {
	return func(c *escalationConfig) { c.onEmergency = fn }
}

// NewEscalation builds the watchdog in normal mode.
func NewEscalation(store ratelimit.Store, t Thresholds, opts ...EscalationOption) *Escalation {
	cfg := escalationConfig{now: time.Now, log: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Escalation{store: store, t: t, now: cfg.now, log: cfg.log}

	emergency := statemachine.WithAction(func(ctx context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
		if cfg.onEmergency == nil {
			return nil
		}
		v, _ := data.(Velocity)
		return cfg.onEmergency(ctx, v)
	})

	e.sm = statemachine.MustNew(ModeNormal,
		statemachine.WithTransition(ModeNormal, ModeEmergency, EventVelocity,
			statemachine.WithGuard(e.atLeast(t.EmergencyAt)), emergency),
		statemachine.WithTransition(ModeNormal, ModeEscalated, EventVelocity,
			statemachine.WithGuard(e.atLeast(t.EscalateAt))),
		statemachine.WithTransition(ModeEscalated, ModeEmergency, EventVelocity,
			statemachine.WithGuard(e.atLeast(t.EmergencyAt)), emergency),
		statemachine.WithTransition(ModeEscalated, ModeNormal, EventVelocity,
			statemachine.WithGuard(e.calm)),
		statemachine.WithTransition(ModeEmergency, ModeEscalated, EventReenabled),
		statemachine.WithHook(e.logTransition),
	)
	return e
}

func (e *Escalation) atLeast(n int64) statemachine.Guard {
	return func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		v, ok := data.(Velocity)
		return ok && n > 0 && v.Current >= n
	}
}

// calm requires a full quiet window behind the current one so the low counts
// at the start of every window do not de-escalate an ongoing attack.
func (e *Escalation) calm(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	v, ok := data.(Velocity)
	return ok && v.Current < e.t.DeescalateBelow && v.Previous < e.t.DeescalateBelow
}

func (e *Escalation) logTransition(ctx context.Context, from, to statemachine.State, event statemachine.Event) {
	level := slog.LevelWarn
	if to == ModeEmergency {
		level = slog.LevelError
	}
	e.log.Log(ctx, level, "registration protection mode changed",
		logger.Component("abuse"),
		slog.String("from", from.Name()),
		logger.Mode(to.Name()),
		logger.Event(event.Name()),
	)
}

// Mode returns the current mode.
func (e *Escalation) Mode() Mode {
	return e.sm.Current().(Mode)
}

// Observe counts ip in the current velocity window and fires EventVelocity.
// It returns the mode after the observation.
func (e *Escalation) Observe(ctx context.Context, ip string) (Mode, error) {
	window := e.t.VelocityWindow
	if window <= 0 {
		window = time.Minute
	}
	bucket := e.now().Truncate(window).Unix()

	count, err := e.store.AddUnique(ctx, velocityKeyBase+strconv.FormatInt(bucket, 10), ip, 2*window)
	if err != nil {
		return e.Mode(), errors.Join(ErrStoreUnavailable, err)
	}

	return e.fire(ctx, EventVelocity, e.track(bucket, int64(window/time.Second), count))
}

// Reenable moves emergency mode back to escalated after an operator turned
// registration on again. It is a no-op in other modes.
func (e *Escalation) Reenable(ctx context.Context) (Mode, error) {
	return e.fire(ctx, EventReenabled, nil)
}

// Reset forces normal mode and forgets velocity history.
func (e *Escalation) Reset() {
	_ = e.sm.Reset()
	e.mu.Lock()
	e.bucket, e.peak, e.prevPeak = 0, 0, 0
	e.mu.Unlock()
}

func (e *Escalation) fire(ctx context.Context, event statemachine.Event, data any) (Mode, error) {
	err := e.sm.Fire(ctx, event, data)
	if err != nil && !statemachine.Stayed(err) {
		return e.Mode(), err
	}
	return e.Mode(), nil
}

// track keeps the peak count of the current and previous windows. A gap of
// more than one window means the previous window saw nothing.
func (e *Escalation) track(bucket, step, count int64) Velocity {
	e.mu.Lock()
	defer e.mu.Unlock()

	if bucket != e.bucket {
		if bucket == e.bucket+step {
			e.prevPeak = e.peak
		} else {
			e.prevPeak = 0
		}
		e.bucket, e.peak = bucket, 0
	}
	e.peak = max(e.peak, count)
	return Velocity{Current: count, Previous: e.prevPeak}
}
