package audit_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/audit"
)

type countingStorage struct {
	audit.MemoryStorage
	batches atomic.Int32
}

func (c *countingStorage) StoreBatch(ctx context.Context, events []audit.Event) error {
	c.batches.Add(1)
	return c.MemoryStorage.StoreBatch(ctx, events)
}

func TestAsyncWriter(t *testing.T) {
	t.Parallel()

	t.Run("batches concurrent writes", func(t *testing.T) {
		t.Parallel()
		storage := &countingStorage{}
		aw := audit.NewAsyncWriter(storage, audit.AsyncOptions{BatchSize: 10, BatchTimeout: 20 * time.Millisecond})
		l := audit.NewLogger(aw)

		var wg sync.WaitGroup
		for i := range 30 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, l.Log(context.Background(), fmt.Sprintf("action.%d", i)))
			}()
		}
		wg.Wait()

		require.NoError(t, aw.Close(context.Background()))
		assert.Len(t, storage.Events(), 30)
		assert.Less(t, storage.batches.Load(), int32(30))
	})

	t.Run("close flushes pending events", func(t *testing.T) {
		t.Parallel()
		storage := &countingStorage{}
		aw := audit.NewAsyncWriter(storage, audit.AsyncOptions{BatchSize: 100, BatchTimeout: time.Hour})

		done := make(chan error, 1)
		go func() {
			done <- aw.Store(context.Background(), audit.Event{ID: "1", Action: "a", Severity: audit.SeverityInfo})
		}()
		time.Sleep(10 * time.Millisecond)

		require.NoError(t, aw.Close(context.Background()))
		require.NoError(t, <-done)
		assert.Len(t, storage.Events(), 1)
	})

	t.Run("store after close fails", func(t *testing.T) {
		t.Parallel()
		aw := audit.NewAsyncWriter(&countingStorage{}, audit.AsyncOptions{})
		require.NoError(t, aw.Close(context.Background()))
		require.NoError(t, aw.Close(context.Background()))
		err := aw.Store(context.Background(), audit.Event{Action: "a", Severity: audit.SeverityInfo})
		assert.ErrorIs(t, err, audit.ErrStorageNotAvailable)
	})
}
