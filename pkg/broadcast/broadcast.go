package broadcast

import "context"

// Message is a payload delivered on a named channel.
type Message struct {
	Channel string
	Payload []byte
}

// Subscriber receives messages for the channels it subscribed to.
type Subscriber interface {
	// Receive returns the delivery channel. It is closed after Close or when
	// the subscription context is cancelled.
	Receive() <-chan Message

	// Close is idempotent.
	Close() error
}

// Bus fans messages out to every subscriber of a channel, across processes
// when backed by Redis. Delivery is best effort: slow consumers lose messages
// instead of blocking publishers.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (Subscriber, error)
	Close() error
}
