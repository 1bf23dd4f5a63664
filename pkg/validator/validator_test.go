package validator_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/validator"
)

func TestRules(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rule validator.Rule
		ok   bool
	}{
		{"required present", validator.RequiredString("key", "beta"), true},
		{"required blank", validator.RequiredString("key", "  "), false},
		{"max len ok", validator.MaxLenString("key", "abc", 3), true},
		{"max len over", validator.MaxLenString("key", "abcd", 3), false},
		{"regex match", validator.MatchesRegex("key", "new_ui", `^[a-z_]+$`, "key"), true},
		{"regex miss", validator.MatchesRegex("key", "New-UI", `^[a-z_]+$`, "key"), false},
		{"regex empty", validator.MatchesRegex("key", "", `^.*$`, "anything"), false},
		{"slice required", validator.RequiredSlice("keys", []string{"a"}), true},
		{"slice empty", validator.RequiredSlice[string]("keys", nil), false},
		{"slice max", validator.MaxLenSlice("keys", []int{1, 2, 3}, 2), false},
		{"min num", validator.MinNum("rollout", 0, 0), true},
		{"min num under", validator.MinNum("rollout", -1, 0), false},
		{"max num", validator.MaxNum("rollout", 100, 100), true},
		{"max num over", validator.MaxNum("rollout", 100.5, 100), false},
		{"date before", validator.DateBefore("start", now, now.Add(time.Hour)), true},
		{"date equal", validator.DateBefore("start", now, now), false},
		{"email", validator.ValidEmail("email", "jane@example.com"), true},
		{"email display name", validator.ValidEmail("email", "Jane <jane@example.com>"), false},
		{"email no dot", validator.ValidEmail("email", "jane@localhost"), false},
		{"email empty label", validator.ValidEmail("email", "jane@example..com"), false},
		{"ipv4", validator.ValidIP("ip", "203.0.113.5"), true},
		{"ipv6", validator.ValidIP("ip", "2001:db8::1"), true},
		{"ip garbage", validator.ValidIP("ip", "203.0.113"), false},
		{"custom", validator.Custom("x", false, "bad", "x_bad"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.ok, tt.rule.Check())
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	require.NoError(t, validator.Apply(
		validator.RequiredString("key", "beta"),
		validator.MaxNum("rollout", 10, 100),
	))

	err := validator.Apply(
		validator.RequiredString("key", ""),
		validator.MatchesRegex("key", "", `^[a-z]+$`, "key"),
		validator.MaxNum("rollout", 150, 100),
		validator.ValidEmail("email", "ok@example.com"),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, validator.ErrValidationFailed)
	assert.True(t, validator.IsValidationError(err))

	wrapped := fmt.Errorf("create flag: %w", err)
	verrs := validator.ExtractValidationErrors(wrapped)
	require.Len(t, verrs, 3)
	assert.Equal(t, []string{"key", "rollout"}, verrs.Fields())
	assert.True(t, verrs.Has("rollout"))
	assert.False(t, verrs.Has("email"))
	assert.Equal(t, []string{"must be at most 100"}, verrs.Get("rollout"))
	assert.Contains(t, err.Error(), "rollout: must be at most 100")
	assert.Equal(t, "max", verrs[2].Code)
	assert.Equal(t, "pattern", verrs[1].Code)

	assert.False(t, validator.IsValidationError(errors.New("plain")))
	assert.Nil(t, validator.ExtractValidationErrors(nil))
}

func TestValidationErrors_Add(t *testing.T) {
	t.Parallel()
	var verrs validator.ValidationErrors
	assert.True(t, verrs.IsEmpty())
	assert.Equal(t, "validation failed", verrs.Error())

	verrs.Add(validator.ValidationError{Field: "key", Message: "taken"})
	assert.Equal(t, "validation failed: key: taken", verrs.Error())
}

func BenchmarkMatchesRegex(b *testing.B) {
	for b.Loop() {
		_ = validator.MatchesRegex("key", "new_checkout", `^[a-z0-9][a-z0-9_.:-]*$`, "flag key").Check()
	}
}
