package feature

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flaggate/pkg/async"
	"github.com/dmitrymomot/flaggate/pkg/audit"
	"github.com/dmitrymomot/flaggate/pkg/broadcast"
	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// EmergencyChannel is the bus channel for emergency events.
const EmergencyChannel = "flaggate:emergency"

// DefaultSelfRegistrationKey is the flag guarding self-service sign-up.
const DefaultSelfRegistrationKey = "self_registration"

// EmergencyType names an emergency action.
type EmergencyType string

const (
	EmergencyDisableFlag             EmergencyType = "disable_flag"
	EmergencyDisableSelfRegistration EmergencyType = "disable_self_registration"
	EmergencyDisableAllFeatures      EmergencyType = "disable_all_features"
)

// Audit actions written by the emergency path.
const (
	ActionEmergencyDisable    = "feature.emergency_disable"
	ActionEmergencyDisableAll = "feature.emergency_disable_all"
)

// EmergencyEvent is broadcast to every instance.
type EmergencyEvent struct {
	Type      EmergencyType `json:"type"`
	Key       string        `json:"key,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Actor     string        `json:"actor,omitempty"`
	Origin    string        `json:"origin"`
	Timestamp time.Time     `json:"timestamp"`
}

// Emergency applies kill switches locally and fans them out to peers.
type Emergency struct {
	store      *Store
	bus        broadcast.Bus
	audit      *audit.Logger
	log        *slog.Logger
	origin     string
	selfRegKey string
	now        func() time.Time
}

// EmergencyOption configures an Emergency.
type EmergencyOption func(*Emergency)

func WithEmergencyBus(bus broadcast.Bus) EmergencyOption {
	return func(m *Emergency) { m.bus = bus }
}

func WithEmergencyAudit(l *audit.Logger) EmergencyOption {
	return func(m *Emergency) { m.audit = l }
}

func WithEmergencyLogger(l *slog.Logger) EmergencyOption {
	return func(m *Emergency) {
		if l != nil {
			m.log = l
		}
	}
}

func WithSelfRegistrationKey(key string) EmergencyOption {
	return func(m *Emergency) {
		if key != "" {
			m.selfRegKey = key
		}
	}
}

// NewEmergency binds the emergency path to store. The store origin is used
// to recognise this instance's own broadcasts.
func NewEmergency(store *Store, opts ...EmergencyOption) *Emergency {
	m := &Emergency{
		store:      store,
		log:        logger.Nop(),
		origin:     store.Origin(),
		selfRegKey: DefaultSelfRegistrationKey,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.origin == "" {
		m.origin = uuid.NewString()
	}
	return m
}

func (m *Emergency) SelfRegistrationKey() string { return m.selfRegKey }

// Disable turns key off in memory immediately, then persists the change.
// Broadcasting and auditing happen in the background; the returned future
// completes when both are done. A persist failure is returned wrapped in
// ErrPersistFailed but the local disable stays in effect.
func (m *Emergency) Disable(ctx context.Context, key, reason, actor string) (*async.Future[struct{}], error) {
	if key == "" {
		return nil, errors.Join(ErrInvalidFlag, errors.New("empty flag key"))
	}

	m.store.SetEnabled(key, false)

	var persistErr error
	if w, ok := m.store.Source().(WritableSource); ok {
		if err := w.SetEnabled(ctx, key, false); err != nil && !errors.Is(err, ErrFlagNotFound) {
			persistErr = errors.Join(ErrPersistFailed, err)
			m.log.ErrorContext(ctx, "failed to persist emergency disable", logger.FlagKey(key), logger.Error(err))
		}
	}

	typ := EmergencyDisableFlag
	if key == m.selfRegKey {
		typ = EmergencyDisableSelfRegistration
	}
	ev := EmergencyEvent{Type: typ, Key: key, Reason: reason, Actor: actor, Origin: m.origin, Timestamp: m.now().UTC()}

	m.log.WarnContext(ctx, "feature emergency disabled",
		logger.FlagKey(key),
		logger.Reason(reason),
		logger.Actor(actor),
	)
	return async.Async(context.WithoutCancel(ctx), ev, m.announce), persistErr
}

// DisableAllFeatures disables every non-system flag.
func (m *Emergency) DisableAllFeatures(ctx context.Context, reason, actor string) (*async.Future[struct{}], error) {
	keys := m.store.DisableAll()

	var errs []error
	if w, ok := m.store.Source().(WritableSource); ok {
		for _, key := range keys {
			if err := w.SetEnabled(ctx, key, false); err != nil && !errors.Is(err, ErrFlagNotFound) {
				errs = append(errs, err)
			}
		}
	}
	var persistErr error
	if len(errs) > 0 {
		persistErr = errors.Join(ErrPersistFailed, errors.Join(errs...))
		m.log.ErrorContext(ctx, "failed to persist disable-all", logger.Error(persistErr))
	}

	ev := EmergencyEvent{Type: EmergencyDisableAllFeatures, Reason: reason, Actor: actor, Origin: m.origin, Timestamp: m.now().UTC()}
	m.log.WarnContext(ctx, "all features emergency disabled",
		slog.Int("flags", len(keys)),
		logger.Reason(reason),
		logger.Actor(actor),
	)
	return async.Async(context.WithoutCancel(ctx), ev, m.announce), persistErr
}

func (m *Emergency) announce(ctx context.Context, ev EmergencyEvent) (struct{}, error) {
	var errs []error

	if m.bus != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			err = m.bus.Publish(ctx, EmergencyChannel, payload)
		}
		if err != nil {
			m.log.WarnContext(ctx, "emergency broadcast failed", logger.FlagKey(ev.Key), logger.Error(err))
			errs = append(errs, err)
		}
	}

	if m.audit != nil {
		action := ActionEmergencyDisable
		if ev.Type == EmergencyDisableAllFeatures {
			action = ActionEmergencyDisableAll
		}
		err := m.audit.Log(ctx, action,
			audit.WithActor(ev.Actor),
			audit.WithResource("feature_flag", ev.Key),
			audit.WithSeverity(audit.SeverityCritical),
			audit.WithDetail("type", string(ev.Type)),
			audit.WithDetail("reason", ev.Reason),
		)
		if err != nil {
			m.log.ErrorContext(ctx, "failed to write emergency audit record", logger.Error(err))
			errs = append(errs, err)
		}
	}

	return struct{}{}, errors.Join(errs...)
}

// Handle applies an event received from a peer. Applying the same event
// twice has no further effect.
func (m *Emergency) Handle(ctx context.Context, ev EmergencyEvent) error {
	if ev.Origin == m.origin {
		return nil
	}

	switch ev.Type {
	case EmergencyDisableFlag:
		if ev.Key == "" {
			return errors.Join(ErrConfiguration, errors.New("disable_flag event without key"))
		}
		m.store.SetEnabled(ev.Key, false)
	case EmergencyDisableSelfRegistration:
		key := ev.Key
		if key == "" {
			key = m.selfRegKey
		}
		m.store.SetEnabled(key, false)
	case EmergencyDisableAllFeatures:
		m.store.DisableAll()
	default:
		return errors.Join(ErrConfiguration, errors.New("unknown emergency event type "+string(ev.Type)))
	}

	m.log.WarnContext(ctx, "applied emergency event from peer",
		slog.String("type", string(ev.Type)),
		logger.FlagKey(ev.Key),
		slog.String("origin", ev.Origin),
	)
	return nil
}

// Run consumes emergency events from the bus until ctx is done.
func (m *Emergency) Run(ctx context.Context) error {
	if m.bus == nil {
		<-ctx.Done()
		return nil
	}
	sub, err := m.bus.Subscribe(ctx, EmergencyChannel)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Receive():
			if !ok {
				return nil
			}
			var ev EmergencyEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				m.log.WarnContext(ctx, "dropping malformed emergency event", logger.Error(err))
				continue
			}
			if err := m.Handle(ctx, ev); err != nil {
				m.log.WarnContext(ctx, "failed to apply emergency event", logger.Error(err))
			}
		}
	}
}
