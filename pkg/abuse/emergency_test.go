package abuse_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/abuse"
	"github.com/dmitrymomot/flaggate/pkg/audit"
	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/flagsource"
)

func TestDistributedAttack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	key := feature.DefaultSelfRegistrationKey

	src := flagsource.NewMemory(&feature.Flag{
		Key:      key,
		Category: feature.CategorySystem,
		Enabled:  true,
		Version:  1,
	})
	store := feature.NewStore(src)
	require.NoError(t, store.Load(ctx))
	engine := feature.NewEngine(store)

	auditStore := audit.NewMemoryStorage()
	auditLog := audit.NewLogger(auditStore)
	emergency := feature.NewEmergency(store, feature.WithEmergencyAudit(auditLog))

	pending := abuse.NewMemoryPendingStore(0)
	require.NoError(t, pending.Add(ctx, abuse.Pending{Email: "early@company.com", IP: "192.0.2.9"}))
	require.NoError(t, pending.Add(ctx, abuse.Pending{Email: "bot1@company.com", IP: "192.0.2.10"}))

	th := abuse.DefaultThresholds()
	th.EscalateAt = 2
	th.EmergencyAt = 4
	th.DeescalateBelow = 1

	p := abuse.NewProtection(newMemoryStore(t, c), engine,
		abuse.WithThresholds(th),
		abuse.WithDisabler(emergency),
		abuse.WithPendingStore(pending),
		abuse.WithAudit(auditLog),
		abuse.WithClock(c.Now),
	)

	res, err := p.Check(ctx, human(ipN(1)))
	require.NoError(t, err)
	assert.Equal(t, abuse.ModeNormal, res.Mode)
	assert.False(t, res.RequireCaptcha)

	for i := 2; i <= 3; i++ {
		res, err = p.Check(ctx, human(ipN(i)))
		require.NoError(t, err)
		assert.Equal(t, abuse.ModeEscalated, res.Mode)
		assert.True(t, res.RequireCaptcha)
	}

	res, err = p.Check(ctx, human(ipN(4)))
	require.ErrorIs(t, err, abuse.ErrRegistrationDisabled)
	assert.False(t, res.Allowed)
	assert.Equal(t, abuse.ModeEmergency, res.Mode)

	assert.False(t, engine.IsEnabled(ctx, key, nil))
	persisted, err := src.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, persisted.Enabled, "the disable reaches the source")

	n, err := pending.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "pending registrations are purged")

	detected := auditStore.Find(abuse.ActionAttackDetected, audit.SeverityCritical)
	require.Len(t, detected, 1)
	assert.EqualValues(t, 2, detected[0].Details["pending_cleared"])
	assert.Eventually(t, func() bool {
		return len(auditStore.Find(feature.ActionEmergencyDisable, audit.SeverityCritical)) == 1
	}, time.Second, 10*time.Millisecond)

	_, err = p.Check(ctx, human(ipN(5)))
	require.ErrorIs(t, err, abuse.ErrRegistrationDisabled)

	// An operator turns registration back on.
	require.NoError(t, src.SetEnabled(ctx, key, true))
	store.SetEnabled(key, true)
	c.Advance(2 * time.Minute)

	res, err = p.Check(ctx, human(ipN(6)))
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, abuse.ModeEscalated, res.Mode)
	assert.True(t, res.RequireCaptcha)
}

func TestEmergencyPersistFailureStillRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()

	th := abuse.DefaultThresholds()
	th.EscalateAt = 0
	th.EmergencyAt = 2

	d := &disabler{err: errors.Join(feature.ErrPersistFailed, errors.New("db down"))}
	p := abuse.NewProtection(newMemoryStore(t, c), newFlagSwitch(true),
		abuse.WithThresholds(th),
		abuse.WithDisabler(d),
		abuse.WithClock(c.Now),
	)

	_, err := p.Check(ctx, human(ipN(1)))
	require.NoError(t, err)
	_, err = p.Check(ctx, human(ipN(2)))
	require.ErrorIs(t, err, abuse.ErrRegistrationDisabled)
	assert.Equal(t, abuse.ModeEmergency, p.Mode())
	assert.Equal(t, []string{feature.DefaultSelfRegistrationKey}, d.keys())
}

func TestEmergencyWithoutDisabler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()

	th := abuse.DefaultThresholds()
	th.EscalateAt = 0
	th.EmergencyAt = 1

	p := abuse.NewProtection(newMemoryStore(t, c), newFlagSwitch(true), abuse.WithThresholds(th), abuse.WithClock(c.Now))
	_, err := p.Check(ctx, human(ipN(1)))
	require.ErrorIs(t, err, abuse.ErrRegistrationDisabled)

	// Nothing can flip the flag, so only a reset leaves emergency mode.
	c.Advance(10 * time.Minute)
	_, err = p.Check(ctx, human(ipN(2)))
	require.ErrorIs(t, err, abuse.ErrRegistrationDisabled)

	p.Escalation().Reset()
	_, err = p.Check(ctx, human(ipN(3)))
	require.ErrorIs(t, err, abuse.ErrRegistrationDisabled, "the next ip trips the threshold again")
}
