package broadcast

import (
	"context"
	"slices"
	"sync"
)

type memorySubscriber struct {
	ch       chan Message
	channels []string
	closed   bool
	mu       sync.RWMutex
	onClose  func(*memorySubscriber)
}

func (s *memorySubscriber) Receive() <-chan Message { return s.ch }

func (s *memorySubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	if s.onClose != nil {
		s.onClose(s)
	}
	return nil
}

func (s *memorySubscriber) send(msg Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *memorySubscriber) wants(channel string) bool {
	return len(s.channels) == 0 || slices.Contains(s.channels, channel)
}

// MemoryBus is an in-process Bus for single-instance deployments and tests.
type MemoryBus struct {
	subscribers map[*memorySubscriber]struct{}
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
}

// NewMemoryBus creates a bus whose subscribers buffer up to bufferSize
// messages (minimum 1). A full buffer drops the message for that subscriber.
func NewMemoryBus(bufferSize int) *MemoryBus {
	return &MemoryBus{
		subscribers: make(map[*memorySubscriber]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe registers a subscriber for channels; no channels means all of them.
// The subscription ends when ctx is cancelled.
func (b *MemoryBus) Subscribe(ctx context.Context, channels ...string) (Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &memorySubscriber{
		ch:       make(chan Message, b.bufferSize),
		channels: slices.Clone(channels),
		onClose:  b.remove,
	}
	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			_ = sub.Close()
		}()
	}
	return sub, nil
}

// Publish delivers a copy of payload to every matching subscriber without blocking.
func (b *MemoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	msg := Message{Channel: channel, Payload: slices.Clone(payload)}
	for sub := range b.subscribers {
		if sub.wants(channel) {
			sub.send(msg)
		}
	}
	return nil
}

// Close closes every subscriber. Safe to call more than once.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*memorySubscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	clear(b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (b *MemoryBus) remove(sub *memorySubscriber) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
}
