package feature

import "context"

// Source is the backing store of flag definitions.
type Source interface {
	// LoadAll returns every flag. Used for warm-up and periodic reloads.
	LoadAll(ctx context.Context) ([]*Flag, error)

	// Get returns one flag or ErrFlagNotFound.
	Get(ctx context.Context, key string) (*Flag, error)
}

// OverrideSource holds per-user overrides outside of the flag definition.
type OverrideSource interface {
	// UserOverride reports whether userID has an enabling override for key.
	UserOverride(ctx context.Context, key, userID string) (bool, error)
}

// WritableSource accepts management writes.
type WritableSource interface {
	Source
	Create(ctx context.Context, flag *Flag) error
	Update(ctx context.Context, flag *Flag) error
	Delete(ctx context.Context, key string) error
	SetEnabled(ctx context.Context, key string, enabled bool) error
}
