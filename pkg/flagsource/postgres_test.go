package flagsource_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/flagsource"
	"github.com/dmitrymomot/flaggate/pkg/pg"
)

func TestPostgres(t *testing.T) {
	url := os.Getenv("PG_CONN_URL")
	if url == "" {
		t.Skip("PG_CONN_URL not set")
	}
	ctx := context.Background()
	cfg := pg.Config{ConnectionString: url, MaxOpenConns: 2, RetryAttempts: 1, MigrationsTable: "goose_db_version"}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, pg.Migrate(ctx, pool, cfg, slog.New(slog.DiscardHandler), flagsource.Migrations()))

	src := flagsource.NewPostgres(pool)
	key := "test_" + uuid.NewString()[:8]
	rollout := 40
	now := time.Now().UTC().Truncate(time.Microsecond)
	flag := &feature.Flag{
		Key:          key,
		Enabled:      true,
		DefaultValue: map[string]any{"theme": "dark"},
		Environments: []string{"production"},
		Rollout:      &rollout,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	flag.SetRawRules([]byte(`[{"type":"geography","operator":"country_in","value":["US"]}]`))

	require.NoError(t, src.Create(ctx, flag))
	defer func() { _ = src.Delete(ctx, key) }()
	assert.ErrorIs(t, src.Create(ctx, flag), feature.ErrFlagExists)

	got, err := src.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, map[string]any{"theme": "dark"}, got.DefaultValue)
	require.Len(t, got.Rules, 1)
	assert.Equal(t, 40, *got.Rollout)

	require.NoError(t, src.SetEnabled(ctx, key, false))
	got, err = src.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, int64(2), got.Version)
	assert.ErrorIs(t, src.SetEnabled(ctx, "missing_"+key, false), feature.ErrFlagNotFound)

	require.NoError(t, src.SetUserOverride(ctx, key, "user-1", true))
	ok, err := src.UserOverride(ctx, key, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	got.SetRawRules([]byte(`{broken`))
	got.Version = 3
	require.NoError(t, src.Update(ctx, got))
	got, err = src.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, got.RulesInvalid)
	assert.Equal(t, "{broken", string(got.RawRules))

	require.NoError(t, src.Delete(ctx, key))
	_, err = src.Get(ctx, key)
	assert.ErrorIs(t, err, feature.ErrFlagNotFound)
}
