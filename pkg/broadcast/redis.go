package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus is a Bus on top of Redis PUBLISH/SUBSCRIBE. Every instance
// subscribed to a channel receives each message once.
type RedisBus struct {
	client     redis.UniversalClient
	bufferSize int
	mu         sync.Mutex
	subs       map[*redisSubscriber]struct{}
	closed     bool
}

// NewRedisBus wraps an existing client. The bus does not own the client.
func NewRedisBus(client redis.UniversalClient, bufferSize int) *RedisBus {
	return &RedisBus{
		client:     client,
		bufferSize: max(bufferSize, 1),
		subs:       make(map[*redisSubscriber]struct{}),
	}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning so
// messages published right after the call are not lost.
func (b *RedisBus) Subscribe(ctx context.Context, channels ...string) (Subscriber, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.mu.Unlock()

	ps := b.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Join(ErrSubscribeFailed, err)
	}

	sub := &redisSubscriber{
		ps:   ps,
		ch:   make(chan Message, b.bufferSize),
		done: make(chan struct{}),
	}
	sub.onClose = func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.pump(ctx)
	return sub, nil
}

// Close closes all subscriptions opened through the bus.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redisSubscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	clear(b.subs)
	b.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		errs = append(errs, sub.Close())
	}
	return errors.Join(errs...)
}

type redisSubscriber struct {
	ps      *redis.PubSub
	ch      chan Message
	done    chan struct{}
	once    sync.Once
	onClose func()
}

func (s *redisSubscriber) Receive() <-chan Message { return s.ch }

func (s *redisSubscriber) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return err
}

func (s *redisSubscriber) pump(ctx context.Context) {
	defer close(s.ch)
	in := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.ch <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
			default:
			}
		}
	}
}
