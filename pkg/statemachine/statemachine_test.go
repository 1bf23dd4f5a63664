package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/statemachine"
)

const (
	normal    = statemachine.StringState("normal")
	escalated = statemachine.StringState("escalated")
	emergency = statemachine.StringState("emergency")

	velocity = statemachine.StringEvent("unique_ip_velocity")
	manual   = statemachine.StringEvent("manual")
)

func atLeast(n int) statemachine.Guard {
	return func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		v, ok := data.(int)
		return ok && v >= n
	}
}

func below(n int) statemachine.Guard {
	return func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		v, ok := data.(int)
		return ok && v < n
	}
}

func newMachine(t *testing.T, opts ...statemachine.Option) statemachine.StateMachine {
	t.Helper()
	base := []statemachine.Option{
		// Order matters: the emergency branch is checked first.
		statemachine.WithTransition(normal, emergency, velocity, statemachine.WithGuard(atLeast(500))),
		statemachine.WithTransition(normal, escalated, velocity, statemachine.WithGuard(atLeast(50))),
		statemachine.WithTransition(escalated, emergency, velocity, statemachine.WithGuard(atLeast(500))),
		statemachine.WithTransition(escalated, normal, velocity, statemachine.WithGuard(below(10))),
	}
	sm, err := statemachine.New(normal, append(base, opts...)...)
	require.NoError(t, err)
	return sm
}

func TestFire_GuardBranching(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name  string
		steps []int
		want  statemachine.State
	}{
		{"stays normal", []int{10, 49}, normal},
		{"escalates", []int{50}, escalated},
		{"straight to emergency", []int{600}, emergency},
		{"escalated then emergency", []int{60, 500}, emergency},
		{"de-escalates", []int{60, 5}, normal},
		{"escalated holds between thresholds", []int{60, 30}, escalated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sm := newMachine(t)
			for _, v := range tt.steps {
				err := sm.Fire(ctx, velocity, v)
				if err != nil {
					require.ErrorIs(t, err, statemachine.ErrRejected)
				}
			}
			assert.Equal(t, tt.want, sm.Current())
		})
	}
}

func TestFire_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := newMachine(t)

	err := sm.Fire(ctx, velocity, 1)
	assert.ErrorIs(t, err, statemachine.ErrRejected)
	assert.True(t, statemachine.Stayed(err))
	assert.False(t, sm.CanFire(ctx, velocity, 1))
	assert.True(t, sm.CanFire(ctx, velocity, 50))

	err = sm.Fire(ctx, manual, nil)
	assert.ErrorIs(t, err, statemachine.ErrNoTransition)
	var fe *statemachine.FireError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "normal", fe.State)
	assert.Equal(t, "manual", fe.Event)

	assert.ErrorIs(t, sm.Fire(ctx, nil, nil), statemachine.ErrInvalidEvent)
	assert.ErrorIs(t, sm.AddTransition(nil, normal, manual, nil, nil), statemachine.ErrInvalidTransition)

	_, err = statemachine.New(nil)
	assert.ErrorIs(t, err, statemachine.ErrNilInitialState)
}

func TestFire_Actions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var calls []string
	record := func(_ context.Context, from, to statemachine.State, _ statemachine.Event, _ any) error {
		calls = append(calls, from.Name()+"->"+to.Name())
		return nil
	}
	fail := func(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
		return errors.New("disable failed")
	}

	sm := statemachine.MustNew(normal,
		statemachine.WithTransition(normal, escalated, velocity, statemachine.WithAction(record)),
		statemachine.WithTransition(escalated, emergency, velocity, statemachine.WithAction(fail)),
	)

	require.NoError(t, sm.Fire(ctx, velocity, nil))
	assert.Equal(t, []string{"normal->escalated"}, calls)

	err := sm.Fire(ctx, velocity, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disable failed")
	assert.False(t, statemachine.Stayed(err))
	assert.Equal(t, escalated, sm.Current(), "failed action keeps the state")

	require.NoError(t, sm.Reset())
	assert.Equal(t, normal, sm.Current())
}

func TestWithHook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var mu sync.Mutex
	var seen []string
	sm := newMachine(t, statemachine.WithHook(func(_ context.Context, from, to statemachine.State, e statemachine.Event) {
		mu.Lock()
		seen = append(seen, from.Name()+">"+to.Name()+"@"+e.Name())
		mu.Unlock()
	}))

	require.NoError(t, sm.Fire(ctx, velocity, 50))
	_ = sm.Fire(ctx, velocity, 20)
	require.NoError(t, sm.Fire(ctx, velocity, 1))

	assert.Equal(t, []string{
		"normal>escalated@unique_ip_velocity",
		"escalated>normal@unique_ip_velocity",
	}, seen)
}

func TestWithGuard_AllMustPass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sm := statemachine.MustNew(normal,
		statemachine.WithTransition(normal, escalated, velocity,
			statemachine.WithGuard(atLeast(10), below(20), nil)),
	)
	assert.False(t, sm.CanFire(ctx, velocity, 5))
	assert.False(t, sm.CanFire(ctx, velocity, 25))
	require.NoError(t, sm.Fire(ctx, velocity, 15))
	assert.Equal(t, escalated, sm.Current())
}

func TestMustNew_PanicsOnBadEdge(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		statemachine.MustNew(normal, statemachine.WithTransition(normal, nil, velocity))
	})
}
