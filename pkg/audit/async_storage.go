package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions tunes batching.
type AsyncOptions struct {
	BufferSize     int           // queued events before Store falls back to a synchronous write
	BatchSize      int           // events per flush
	BatchTimeout   time.Duration // max wait for a partial batch
	StorageTimeout time.Duration // per-flush timeout, independent of caller contexts
}

// AsyncWriter collects events from many goroutines and flushes them in
// batches. Store blocks until the batch holding the event is written.
type AsyncWriter struct {
	storage BatchStorage
	queue   chan pendingEvent
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	opts    AsyncOptions
}

type pendingEvent struct {
	event  Event
	result chan error
}

// NewAsyncWriter starts the flush worker. Call Close on shutdown.
func NewAsyncWriter(storage BatchStorage, opts AsyncOptions) *AsyncWriter {
	if storage == nil {
		panic("audit: batch storage cannot be nil")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	aw := &AsyncWriter{
		storage: storage,
		queue:   make(chan pendingEvent, opts.BufferSize),
		done:    make(chan struct{}),
		opts:    opts,
	}
	aw.wg.Add(1)
	go aw.worker()
	return aw
}

// Store queues the event and waits for its batch. A full queue writes the
// event synchronously so no audit record is dropped.
func (aw *AsyncWriter) Store(ctx context.Context, event Event) error {
	select {
	case <-aw.done:
		return ErrStorageNotAvailable
	default:
	}

	result := make(chan error, 1)
	select {
	case aw.queue <- pendingEvent{event: event, result: result}:
	default:
		return aw.storage.StoreBatch(ctx, []Event{event})
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (aw *AsyncWriter) worker() {
	defer aw.wg.Done()

	ticker := time.NewTicker(aw.opts.BatchTimeout)
	defer ticker.Stop()

	events := make([]Event, 0, aw.opts.BatchSize)
	waiters := make([]chan error, 0, aw.opts.BatchSize)

	flush := func() {
		if len(events) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), aw.opts.StorageTimeout)
		err := aw.storage.StoreBatch(ctx, events)
		cancel()

		for _, w := range waiters {
			w <- err
		}
		clear(events)
		events = events[:0]
		waiters = waiters[:0]
	}

	add := func(p pendingEvent) {
		events = append(events, p.event)
		waiters = append(waiters, p.result)
		if len(events) >= aw.opts.BatchSize {
			flush()
		}
	}

	for {
		select {
		case p := <-aw.queue:
			add(p)
		case <-ticker.C:
			flush()
		case <-aw.done:
			for {
				select {
				case p := <-aw.queue:
					add(p)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events and flushes what is queued. ctx bounds the wait.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.once.Do(func() { close(aw.done) })

	finished := make(chan struct{})
	go func() {
		aw.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
