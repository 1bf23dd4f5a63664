package abuse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/analytics"
	"github.com/dmitrymomot/flaggate/pkg/async"
	"github.com/dmitrymomot/flaggate/pkg/audit"
	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/logger"
	"github.com/dmitrymomot/flaggate/pkg/ratelimit"
)

// Audit actions.
const (
	ActionBlocked        = "registration.blocked"
	ActionAutomated      = "registration.automated"
	ActionAttackDetected = "registration.attack_detected"
	ActionUnblocked      = "registration.unblocked"
)

const systemActor = "abuse-protection"

// FlagChecker answers whether self-registration is on. *feature.Engine
// implements it.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string, ec feature.EvalContext) bool
}

// Disabler turns a flag off everywhere. *feature.Emergency implements it.
type Disabler interface {
	Disable(ctx context.Context, key, reason, actor string) (*async.Future[struct{}], error)
}

var (
	_ FlagChecker = (*feature.Engine)(nil)
	_ Disabler    = (*feature.Emergency)(nil)
)

// RegistrationRecorder receives one event per check. *analytics.Recorder
// implements it.
type RegistrationRecorder interface {
	RecordRegistration(event analytics.RegistrationEvent)
}

// Attempt is one registration request.
type Attempt struct {
	IP           string
	Fingerprint  string
	Email        string
	UserAgent    string
	Headers      http.Header
	IPReputation *int // 0 (bad) to 100 (good), nil when unknown
	VPN          bool
	Proxy        bool
}

// Result is the gate's verdict for an allowed attempt. Rejections come back
// as an error together with a Result describing them.
//
// Score, Signals and Mode are operator data. Transports decide what reaches
// the client.
type Result struct {
	Allowed                  bool
	RequireCaptcha           bool
	RequireEmailVerification bool
	RemainingAttempts        int
	Score                    float64
	Signals                  Signals
	Mode                     Mode
	// RetryAfter is what is left of the IP block when the attempt was
	// rejected by one.
	RetryAfter time.Duration
}

// Protection guards self-registration.
type Protection struct {
	store        ratelimit.Store
	flags        FlagChecker
	disabler     Disabler
	selfRegKey   string
	pending      PendingStore
	audit        *audit.Logger
	recorder     RegistrationRecorder
	log          *slog.Logger
	t            Thresholds
	now          func() time.Time
	extraDomains []string

	scorer     *Scorer
	escalation *Escalation
}

// NewProtection wires the gate to the shared counter store and the flag
// engine.
func NewProtection(store ratelimit.Store, flags FlagChecker, opts ...Option) *Protection {
	p := &Protection{
		store:      store,
		flags:      flags,
		selfRegKey: feature.DefaultSelfRegistrationKey,
		log:        logger.Nop(),
		t:          DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.scorer = NewScorer(store, p.t, p.extraDomains...)
	p.scorer.now = p.now
	p.escalation = NewEscalation(store, p.t,
		WithEscalationClock(p.now),
		WithEscalationLogger(p.log),
		OnEmergency(p.enterEmergency),
	)
	return p
}

// Mode returns the current protection mode.
func (p *Protection) Mode() Mode { return p.escalation.Mode() }

// Escalation exposes the watchdog, mainly for operator resets.
func (p *Protection) Escalation() *Escalation { return p.escalation }

// Scorer exposes the signal collector.
func (p *Protection) Scorer() *Scorer { return p.scorer }

// Thresholds returns the configured limits.
func (p *Protection) Thresholds() Thresholds { return p.t }

// Check runs the registration gate:
//
//  1. the self-registration flag must be on (ErrRegistrationDisabled)
//  2. blocked IPs are rejected (ErrBlocked); the per-IP counter is
//     incremented and an IP above the hard limit is blocked
//     (ErrTooManyAttempts)
//  3. between the CAPTCHA and hard limits CAPTCHA is required
//  4. the suspicion score is computed
//  5. a high score blocks the IP for a long time (ErrAutomatedRegistration);
//     a medium one requires CAPTCHA and email verification
//  6. the IP is fed to the escalation watchdog
//
// Store failures return ErrStoreUnavailable.
func (p *Protection) Check(ctx context.Context, a Attempt) (Result, error) {
	if a.IP == "" {
		return Result{Mode: p.Mode()}, ErrMissingIP
	}

	res, outcome, err := p.check(ctx, a)
	p.record(ctx, a, res, outcome, err)
	return res, err
}

func (p *Protection) check(ctx context.Context, a Attempt) (Result, string, error) {
	mode := p.Mode()
	res := Result{Mode: mode}

	if !p.flags.IsEnabled(ctx, p.selfRegKey, feature.EvalContext{
		feature.CtxUserAgent:   a.UserAgent,
		feature.CtxAnonymousID: a.Fingerprint,
	}) {
		return res, "disabled", ErrRegistrationDisabled
	}
	if mode == ModeEmergency {
		if p.disabler == nil {
			return res, "disabled", ErrRegistrationDisabled
		}
		// The flag was turned off on entering emergency. Seeing it on
		// again means an operator re-enabled registration.
		mode, _ = p.escalation.Reenable(ctx)
		res.Mode = mode
	}

	blocked, ttl, err := p.store.Blocked(ctx, blockKey(a.IP))
	if err != nil {
		return res, "error", errors.Join(ErrStoreUnavailable, err)
	}
	if blocked {
		res.RetryAfter = ttl
		return res, "blocked", ErrBlocked
	}

	// Incrementing is the check: concurrent attempts from one IP each see
	// a distinct count.
	count, _, err := p.store.IncrementAndGet(ctx, attemptsKey(a.IP), 1, p.t.Window)
	if err != nil {
		return res, "error", errors.Join(ErrStoreUnavailable, err)
	}

	limits := p.t.ForMode(mode)
	if count > int64(limits.BlockAfter) {
		p.block(ctx, a, p.t.BlockDuration, ActionBlocked, audit.SeverityWarning, slog.Int64("attempts", count))
		p.observe(ctx, a.IP)
		res.RetryAfter = p.t.BlockDuration
		return res, "too_many_attempts", ErrTooManyAttempts
	}
	res.RemainingAttempts = limits.BlockAfter - int(count)
	res.RequireCaptcha = limits.ForceCaptcha || count > int64(limits.CaptchaAfter)

	signals, err := p.scorer.Signals(ctx, a)
	if err != nil {
		return res, "error", err
	}
	res.Signals = signals
	res.Score = Score(signals)

	switch {
	case res.Score > p.t.ScoreHigh:
		p.block(ctx, a, p.t.AutomatedBlockDuration, ActionAutomated, audit.SeverityCritical, logger.Score(res.Score))
		p.observe(ctx, a.IP)
		res.RetryAfter = p.t.AutomatedBlockDuration
		return res, "automated", ErrAutomatedRegistration
	case res.Score > p.t.ScoreMedium:
		res.RequireCaptcha = true
		res.RequireEmailVerification = true
	}

	mode = p.observe(ctx, a.IP)
	res.Mode = mode
	switch mode {
	case ModeEmergency:
		return res, "disabled", ErrRegistrationDisabled
	case ModeEscalated:
		res.RequireCaptcha = true
	}

	res.Allowed = true
	return res, "allowed", nil
}

// observe feeds the watchdog. A store failure here never rejects an attempt
// that passed every other check.
func (p *Protection) observe(ctx context.Context, ip string) Mode {
	mode, err := p.escalation.Observe(ctx, ip)
	if err != nil {
		p.log.WarnContext(ctx, "escalation watchdog unavailable",
			logger.Component("abuse"), logger.Error(err))
	}
	return mode
}

func (p *Protection) block(ctx context.Context, a Attempt, d time.Duration, action string, severity audit.Severity, attr slog.Attr) {
	if err := p.store.Block(ctx, blockKey(a.IP), d); err != nil {
		p.log.ErrorContext(ctx, "failed to block ip",
			logger.Component("abuse"), logger.IP(a.IP), logger.Error(err))
	}
	p.log.WarnContext(ctx, "registration attempt rejected",
		logger.Component("abuse"), logger.IP(a.IP), logger.Event(action), attr)

	if p.audit == nil {
		return
	}
	err := p.audit.Log(ctx, action,
		audit.WithActor(systemActor),
		audit.WithResource("ip", a.IP),
		audit.WithSeverity(severity),
		audit.WithDetail("block_duration", d.String()),
		audit.WithDetail("fingerprint", a.Fingerprint),
		audit.WithDetail("email_domain", EmailDomain(a.Email)),
	)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to write audit record", logger.Component("abuse"), logger.Error(err))
	}
}

// enterEmergency runs inside the watchdog transition and must not read the
// current mode.
func (p *Protection) enterEmergency(ctx context.Context, v Velocity) error {
	reason := fmt.Sprintf("distributed registration attack: %d unique IPs per %s", v.Current, p.t.VelocityWindow)

	if p.disabler != nil {
		if _, err := p.disabler.Disable(ctx, p.selfRegKey, reason, systemActor); err != nil {
			if !errors.Is(err, feature.ErrPersistFailed) {
				return err
			}
			// Disabled locally; persisting is retried by the next reload.
			p.log.ErrorContext(ctx, "self-registration disabled locally only",
				logger.Component("abuse"), logger.FlagKey(p.selfRegKey), logger.Error(err))
		}
	}

	cleared := 0
	if p.pending != nil {
		n, err := p.pending.ClearPending(ctx)
		if err != nil {
			p.log.ErrorContext(ctx, "failed to clear pending registrations",
				logger.Component("abuse"), logger.Error(err))
		}
		cleared = n
	}

	p.log.ErrorContext(ctx, "distributed registration attack detected",
		logger.Component("abuse"),
		logger.Reason(reason),
		slog.Int64("unique_ips", v.Current),
		slog.Int("pending_cleared", cleared),
	)

	if p.audit != nil {
		err := p.audit.Log(ctx, ActionAttackDetected,
			audit.WithActor(systemActor),
			audit.WithResource("feature_flag", p.selfRegKey),
			audit.WithSeverity(audit.SeverityCritical),
			audit.WithDetail("reason", reason),
			audit.WithDetail("unique_ips", v.Current),
			audit.WithDetail("pending_cleared", cleared),
		)
		if err != nil {
			p.log.ErrorContext(ctx, "failed to write audit record", logger.Component("abuse"), logger.Error(err))
		}
	}
	return nil
}

// RecordFailure counts a failed registration (bad CAPTCHA, rejected
// verification) against ip.
func (p *Protection) RecordFailure(ctx context.Context, ip string) error {
	if ip == "" {
		return ErrMissingIP
	}
	if _, _, err := p.store.IncrementAndGet(ctx, failedKey(ip), 1, p.t.FailureWindow); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// RecordSuccess notes a completed registration: the fingerprint reuse count
// grows and the account waits in the pending store until verified.
func (p *Protection) RecordSuccess(ctx context.Context, a Attempt) error {
	var errs []error
	if a.Fingerprint != "" {
		if _, _, err := p.store.IncrementAndGet(ctx, reuseKey(a.Fingerprint), 1, p.t.FingerprintWindow); err != nil {
			errs = append(errs, errors.Join(ErrStoreUnavailable, err))
		}
	}
	if p.pending != nil && a.Email != "" {
		errs = append(errs, p.pending.Add(ctx, Pending{
			Email:       a.Email,
			IP:          a.IP,
			Fingerprint: a.Fingerprint,
			CreatedAt:   p.now(),
		}))
	}
	return errors.Join(errs...)
}

// ConfirmPending drops a verified registration from the pending store.
func (p *Protection) ConfirmPending(ctx context.Context, email string) (bool, error) {
	if p.pending == nil {
		return false, nil
	}
	return p.pending.Remove(ctx, email)
}

// Unblock lifts a block on ip and resets its attempt counter.
func (p *Protection) Unblock(ctx context.Context, ip string) error {
	if ip == "" {
		return ErrMissingIP
	}
	err := errors.Join(
		p.store.Delete(ctx, blockKey(ip)),
		p.store.Delete(ctx, attemptsKey(ip)),
	)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	p.log.InfoContext(ctx, "ip unblocked", logger.Component("abuse"), logger.IP(ip))
	if p.audit != nil {
		if err := p.audit.Log(ctx, ActionUnblocked, audit.WithResource("ip", ip)); err != nil {
			p.log.ErrorContext(ctx, "failed to write audit record", logger.Component("abuse"), logger.Error(err))
		}
	}
	return nil
}

func (p *Protection) record(ctx context.Context, a Attempt, res Result, outcome string, err error) {
	if err != nil {
		p.log.DebugContext(ctx, "registration check rejected",
			logger.Component("abuse"), logger.IP(a.IP), logger.Reason(outcome), logger.Mode(res.Mode.String()))
	}
	if p.recorder == nil {
		return
	}
	p.recorder.RecordRegistration(analytics.RegistrationEvent{
		IP:             a.IP,
		Fingerprint:    a.Fingerprint,
		EmailDomain:    EmailDomain(a.Email),
		Allowed:        res.Allowed,
		RequireCaptcha: res.RequireCaptcha,
		Score:          res.Score,
		Mode:           res.Mode.String(),
		Outcome:        outcome,
		Timestamp:      p.now(),
	})
}
