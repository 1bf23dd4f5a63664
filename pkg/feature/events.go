package feature

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/flaggate/pkg/broadcast"
	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// FlagsChannel is the bus channel carrying StoreEvents between instances.
const FlagsChannel = "flaggate:flags"

// StoreEventType is the kind of change a StoreEvent carries.
type StoreEventType string

const (
	EventUpdate StoreEventType = "update"
	EventDelete StoreEventType = "delete"
	EventReload StoreEventType = "reload"
)

// StoreEvent is an incremental change to the flag set.
type StoreEvent struct {
	Type   StoreEventType `json:"type"`
	Key    string         `json:"key,omitempty"`
	Flag   *Flag          `json:"flag,omitempty"`
	Origin string         `json:"origin,omitempty"`
}

// PublishStoreEvent encodes ev onto the flags channel.
func PublishStoreEvent(ctx context.Context, bus broadcast.Bus, ev StoreEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return bus.Publish(ctx, FlagsChannel, payload)
}

// BridgeStoreEvents subscribes to the flags channel and forwards decoded
// events to out until ctx is done. Undecodable messages are logged and
// skipped. The returned channel is closed when the subscription ends.
func BridgeStoreEvents(ctx context.Context, bus broadcast.Bus, log *slog.Logger) (<-chan StoreEvent, error) {
	sub, err := bus.Subscribe(ctx, FlagsChannel)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	out := make(chan StoreEvent, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		for msg := range sub.Receive() {
			var ev StoreEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.WarnContext(ctx, "dropping malformed store event", logger.Error(errors.Join(ErrConfiguration, err)))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
