package abuse_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/abuse"
)

func testPendingStore(t *testing.T, s abuse.PendingStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, abuse.Pending{Email: "A@example.com", IP: "192.0.2.1"}))
	require.NoError(t, s.Add(ctx, abuse.Pending{Email: "a@example.com", IP: "192.0.2.2"}))
	require.NoError(t, s.Add(ctx, abuse.Pending{Email: "b@example.com", IP: "192.0.2.3"}))
	require.NoError(t, s.Add(ctx, abuse.Pending{
		Email:     "stale@example.com",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "emails are case-insensitive and stale entries expire")

	removed, err := s.Remove(ctx, "B@EXAMPLE.COM")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Remove(ctx, "b@example.com")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, s.Add(ctx, abuse.Pending{Email: "c@example.com"}))
	cleared, err := s.ClearPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryPendingStore(t *testing.T) {
	t.Parallel()
	testPendingStore(t, abuse.NewMemoryPendingStore(time.Hour))
}

func TestRedisPendingStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	defer client.Close()

	testPendingStore(t, abuse.NewRedisPendingStore(client, "flaggate:test:"+uuid.NewString()+":", time.Hour))
}
