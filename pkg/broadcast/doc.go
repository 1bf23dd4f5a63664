// Package broadcast provides a small publish/subscribe bus used to propagate
// flag changes and emergency events between service instances.
//
// MemoryBus delivers within one process; RedisBus uses Redis PUBLISH and
// SUBSCRIBE so every running instance sees every message. Both drop messages
// for subscribers whose buffer is full rather than blocking the publisher.
//
//	bus := broadcast.NewRedisBus(client, 64)
//	sub, err := bus.Subscribe(ctx, "flaggate:emergency")
//	if err != nil {
//		return err
//	}
//	for msg := range sub.Receive() {
//		handle(msg.Payload)
//	}
//
// The subscription is closed when its context is cancelled or Close is called.
package broadcast
