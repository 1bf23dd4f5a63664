package feature

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/audit"
	"github.com/dmitrymomot/flaggate/pkg/broadcast"
	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// Audit actions written by the management plane.
const (
	ActionFlagCreate = "feature.create"
	ActionFlagUpdate = "feature.update"
	ActionFlagDelete = "feature.delete"
)

// Manager is the management plane: it validates definitions, writes them to
// the source, applies them locally and notifies peers. Unlike Evaluate, its
// methods return errors to the caller.
type Manager struct {
	store *Store
	bus   broadcast.Bus
	audit *audit.Logger
	log   *slog.Logger
	now   func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithManagerBus(bus broadcast.Bus) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

func WithManagerAudit(l *audit.Logger) ManagerOption {
	return func(m *Manager) { m.audit = l }
}

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func NewManager(store *Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) writable() (WritableSource, error) {
	w, ok := m.store.Source().(WritableSource)
	if !ok {
		return nil, ErrReadOnlySource
	}
	return w, nil
}

// GetFlag returns the flag from memory, asking the source on a miss.
func (m *Manager) GetFlag(ctx context.Context, key string) (*Flag, error) {
	if f, ok := m.store.Get(key); ok {
		return f, nil
	}
	src := m.store.Source()
	if src == nil {
		return nil, ErrFlagNotFound
	}
	f, err := src.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrFlagNotFound) {
			return nil, err
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return f, nil
}

// ListFlags returns the in-memory flag set.
func (m *Manager) ListFlags() []*Flag {
	return m.store.List()
}

// CreateFlag validates and stores a new flag.
func (m *Manager) CreateFlag(ctx context.Context, flag *Flag, actor string) (*Flag, error) {
	if err := ValidateFlag(flag); err != nil {
		return nil, err
	}
	w, err := m.writable()
	if err != nil {
		return nil, err
	}

	f := flag.Clone()
	now := m.now().UTC()
	f.Version = 1
	f.CreatedAt = now
	f.UpdatedAt = now

	if err := w.Create(ctx, f); err != nil {
		return nil, err
	}
	m.store.Revive(f.Key)
	m.store.Put(f)
	m.publish(ctx, StoreEvent{Type: EventUpdate, Key: f.Key, Flag: f})
	m.record(ctx, ActionFlagCreate, actor, f.Key, audit.SeverityInfo)
	return f.Clone(), nil
}

// UpdateFlag replaces an existing flag and bumps its version.
func (m *Manager) UpdateFlag(ctx context.Context, flag *Flag, actor string) (*Flag, error) {
	if err := ValidateFlag(flag); err != nil {
		return nil, err
	}
	w, err := m.writable()
	if err != nil {
		return nil, err
	}

	current, err := w.Get(ctx, flag.Key)
	if err != nil {
		return nil, err
	}

	f := flag.Clone()
	f.Version = current.Version + 1
	f.CreatedAt = current.CreatedAt
	f.UpdatedAt = m.now().UTC()

	if err := w.Update(ctx, f); err != nil {
		return nil, err
	}
	// An operator update is the explicit way out of an emergency disable.
	m.store.Revive(f.Key)
	m.store.Put(f)
	m.publish(ctx, StoreEvent{Type: EventUpdate, Key: f.Key, Flag: f})
	m.record(ctx, ActionFlagUpdate, actor, f.Key, audit.SeverityInfo)
	return f.Clone(), nil
}

// DeleteFlag removes a flag.
func (m *Manager) DeleteFlag(ctx context.Context, key, actor string) error {
	w, err := m.writable()
	if err != nil {
		return err
	}
	if err := w.Delete(ctx, key); err != nil {
		return err
	}
	m.store.Remove(key)
	m.publish(ctx, StoreEvent{Type: EventDelete, Key: key})
	m.record(ctx, ActionFlagDelete, actor, key, audit.SeverityWarning)
	return nil
}

// publish is best effort; peers also converge on the next periodic reload.
func (m *Manager) publish(ctx context.Context, ev StoreEvent) {
	if m.bus == nil {
		return
	}
	ev.Origin = m.store.Origin()
	if err := PublishStoreEvent(ctx, m.bus, ev); err != nil {
		m.log.WarnContext(ctx, "failed to publish flag change", logger.FlagKey(ev.Key), logger.Error(err))
	}
}

func (m *Manager) record(ctx context.Context, action, actor, key string, severity audit.Severity) {
	if m.audit == nil {
		return
	}
	opts := []audit.EventOption{
		audit.WithResource("feature_flag", key),
		audit.WithSeverity(severity),
	}
	if actor != "" {
		opts = append(opts, audit.WithActor(actor))
	}
	if err := m.audit.Log(ctx, action, opts...); err != nil {
		m.log.ErrorContext(ctx, "failed to write audit record", logger.Error(err))
	}
}
