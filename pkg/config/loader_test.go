package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/config"
)

type breakerConfig struct {
	Threshold    int           `env:"TEST_BREAKER_THRESHOLD" envDefault:"5"`
	OpenDuration time.Duration `env:"TEST_BREAKER_OPEN" envDefault:"60s"`
}

type cachedConfig struct {
	Value string `env:"TEST_CACHED_VALUE" envDefault:"first"`
}

type requiredConfig struct {
	Required string `env:"TEST_REQUIRED_VALUE_MISSING,required"`
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_BREAKER_THRESHOLD", "7")

	var cfg breakerConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 7, cfg.Threshold)
	assert.Equal(t, time.Minute, cfg.OpenDuration)
}

func TestLoad_Cached(t *testing.T) {
	var first cachedConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("TEST_CACHED_VALUE", "second")
	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, first.Value, second.Value)
}

func TestLoad_Errors(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg)
	require.ErrorIs(t, err, config.ErrParse)

	// The failure is cached as well.
	require.ErrorIs(t, config.Load(&cfg), config.ErrParse)

	var nilCfg *breakerConfig
	assert.ErrorIs(t, config.Load(nilCfg), config.ErrNilTarget)
	assert.Panics(t, func() { config.MustLoad(&requiredConfig{}) })
}
