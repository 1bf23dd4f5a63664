package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/circuitbreaker"
	"github.com/dmitrymomot/flaggate/pkg/logger"
)

const breakerKey = "analytics"

// Recorder queues events in a bounded buffer and writes them to a Sink from
// background workers. Record* never block: a full buffer or an open breaker
// drops the event and bumps Dropped.
type Recorder struct {
	sink    Sink
	queue   chan func(context.Context) error
	breaker *circuitbreaker.Group
	log     *slog.Logger
	timeout time.Duration
	workers int
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
	closed  chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

func WithBufferSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan func(context.Context) error, n)
		}
	}
}

func WithWorkers(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithBreaker guards sink writes. Consecutive sink failures open the breaker
// and events are dropped until it half-opens.
func WithBreaker(g *circuitbreaker.Group) RecorderOption {
	return func(r *Recorder) {
		r.breaker = g
	}
}

func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// WithWriteTimeout bounds each sink call.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRecorder starts the workers. Close drains the queue.
func NewRecorder(sink Sink, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sink:    sink,
		queue:   make(chan func(context.Context) error, 4096),
		log:     logger.Nop(),
		timeout: 2 * time.Second,
		workers: 2,
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	for range r.workers {
		r.wg.Add(1)
		go r.run()
	}
	return r
}

func (r *Recorder) RecordEvaluation(event EvaluationEvent) {
	r.enqueue(func(ctx context.Context) error { return r.sink.RecordEvaluation(ctx, event) })
}

func (r *Recorder) RecordRegistration(event RegistrationEvent) {
	r.enqueue(func(ctx context.Context) error { return r.sink.RecordRegistration(ctx, event) })
}

// Dropped returns how many events were discarded.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

func (r *Recorder) enqueue(job func(context.Context) error) {
	select {
	case <-r.closed:
		r.dropped.Add(1)
		return
	default:
	}

	select {
	case r.queue <- job:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case job := <-r.queue:
			r.write(job)
		case <-r.closed:
			for {
				select {
				case job := <-r.queue:
					r.write(job)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(job func(context.Context) error) {
	if r.breaker != nil && !r.breaker.Allow(breakerKey) {
		r.dropped.Add(1)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	err := job(ctx)
	cancel()

	if r.breaker != nil {
		if err != nil {
			r.breaker.Failure(breakerKey)
		} else {
			r.breaker.Success(breakerKey)
		}
	}
	if err != nil {
		r.dropped.Add(1)
		r.log.Debug("analytics sink write failed", logger.Error(err))
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.once.Do(func() { close(r.closed) })

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
