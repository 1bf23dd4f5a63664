package flagsource

import (
	"context"
	"embed"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the goose migration set for the flag tables.
func Migrations() pg.MigrationSet {
	return pg.MigrationSet{Name: "flagsource", FS: migrations, Dir: "migrations"}
}

const flagColumns = `key, description, category, enabled, default_value, start_date, end_date,
	environments, user_ids, roles, prerequisites, targeting_rules, rollout_percentage,
	variants, cache_ttl, tags, version, created_at, updated_at`

const (
	selectAllSQL = `SELECT ` + flagColumns + ` FROM feature_flags ORDER BY key`
	selectOneSQL = `SELECT ` + flagColumns + ` FROM feature_flags WHERE key = $1`

	insertSQL = `INSERT INTO feature_flags (` + flagColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	updateSQL = `UPDATE feature_flags SET
	description = $2, category = $3, enabled = $4, default_value = $5, start_date = $6, end_date = $7,
	environments = $8, user_ids = $9, roles = $10, prerequisites = $11, targeting_rules = $12,
	rollout_percentage = $13, variants = $14, cache_ttl = $15, tags = $16, version = $17, updated_at = $19
	WHERE key = $1`

	deleteSQL     = `DELETE FROM feature_flags WHERE key = $1`
	setEnabledSQL = `UPDATE feature_flags SET enabled = $2, version = version + 1, updated_at = now()
	WHERE key = $1 AND enabled <> $2`
	existsSQL = `SELECT EXISTS (SELECT 1 FROM feature_flags WHERE key = $1)`

	overrideSQL       = `SELECT EXISTS (SELECT 1 FROM feature_flag_user_overrides WHERE flag_key = $1 AND user_id = $2)`
	insertOverrideSQL = `INSERT INTO feature_flag_user_overrides (flag_key, user_id) VALUES ($1, $2)
	ON CONFLICT (flag_key, user_id) DO NOTHING`
	deleteOverrideSQL = `DELETE FROM feature_flag_user_overrides WHERE flag_key = $1 AND user_id = $2`
)

// Postgres is a feature.WritableSource and feature.OverrideSource on pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) LoadAll(ctx context.Context) ([]*feature.Flag, error) {
	rows, err := p.pool.Query(ctx, selectAllSQL)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	flags, err := pgx.CollectRows(rows, scanFlag)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return flags, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (*feature.Flag, error) {
	rows, err := p.pool.Query(ctx, selectOneSQL, key)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	f, err := pgx.CollectExactlyOneRow(rows, scanFlag)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, feature.ErrFlagNotFound
		}
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return f, nil
}

func (p *Postgres) Create(ctx context.Context, flag *feature.Flag) error {
	args, err := flagArgs(flag)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, insertSQL, args...); err != nil {
		if pg.IsDuplicateKeyError(err) {
			return feature.ErrFlagExists
		}
		return errors.Join(ErrQueryFailed, err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, flag *feature.Flag) error {
	args, err := flagArgs(flag)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, updateSQL, args...)
	if err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return feature.ErrFlagNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	tag, err := p.pool.Exec(ctx, deleteSQL, key)
	if err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return feature.ErrFlagNotFound
	}
	return nil
}

// SetEnabled bumps the version only when the value changes.
func (p *Postgres) SetEnabled(ctx context.Context, key string, enabled bool) error {
	tag, err := p.pool.Exec(ctx, setEnabledSQL, key, enabled)
	if err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := p.pool.QueryRow(ctx, existsSQL, key).Scan(&exists); err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	if !exists {
		return feature.ErrFlagNotFound
	}
	return nil
}

func (p *Postgres) UserOverride(ctx context.Context, key, userID string) (bool, error) {
	var ok bool
	if err := p.pool.QueryRow(ctx, overrideSQL, key, userID).Scan(&ok); err != nil {
		return false, errors.Join(ErrQueryFailed, err)
	}
	return ok, nil
}

// SetUserOverride adds or removes an enabling override for userID.
func (p *Postgres) SetUserOverride(ctx context.Context, key, userID string, enabled bool) error {
	query := deleteOverrideSQL
	if enabled {
		query = insertOverrideSQL
	}
	if _, err := p.pool.Exec(ctx, query, key, userID); err != nil {
		if pg.IsForeignKeyViolation(err) {
			return feature.ErrFlagNotFound
		}
		return errors.Join(ErrQueryFailed, err)
	}
	return nil
}

func scanFlag(row pgx.CollectableRow) (*feature.Flag, error) {
	var (
		f            feature.Flag
		defaultValue []byte
		variants     []byte
		rules        *string
		rollout      *int32
		cacheTTL     *int32
	)
	err := row.Scan(
		&f.Key, &f.Description, &f.Category, &f.Enabled, &defaultValue, &f.StartDate, &f.EndDate,
		&f.Environments, &f.UserIDs, &f.Roles, &f.Prerequisites, &rules, &rollout,
		&variants, &cacheTTL, &f.Tags, &f.Version, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// A broken JSON column degrades like malformed rules do: the field is
	// dropped and evaluation falls back to safe defaults.
	if len(defaultValue) > 0 {
		_ = json.Unmarshal(defaultValue, &f.DefaultValue)
	}
	if len(variants) > 0 {
		_ = json.Unmarshal(variants, &f.Variants)
	}
	if rules != nil {
		f.SetRawRules([]byte(*rules))
	}
	if rollout != nil {
		v := int(*rollout)
		f.Rollout = &v
	}
	if cacheTTL != nil {
		v := int(*cacheTTL)
		f.CacheTTLSeconds = &v
	}
	return &f, nil
}

func flagArgs(f *feature.Flag) ([]any, error) {
	var defaultValue, variants []byte
	var err error
	if f.DefaultValue != nil {
		if defaultValue, err = json.Marshal(f.DefaultValue); err != nil {
			return nil, errors.Join(feature.ErrInvalidFlag, err)
		}
	}
	if len(f.Variants) > 0 {
		if variants, err = json.Marshal(f.Variants); err != nil {
			return nil, errors.Join(feature.ErrInvalidFlag, err)
		}
	}

	var rules *string
	switch {
	case f.RulesInvalid:
		s := string(f.RawRules)
		rules = &s
	case len(f.Rules) > 0:
		raw, err := json.Marshal(f.Rules)
		if err != nil {
			return nil, errors.Join(feature.ErrInvalidFlag, err)
		}
		s := string(raw)
		rules = &s
	}

	return []any{
		f.Key, f.Description, f.Category, f.Enabled, defaultValue, f.StartDate, f.EndDate,
		nonNil(f.Environments), nonNil(f.UserIDs), nonNil(f.Roles), nonNil(f.Prerequisites), rules, f.Rollout,
		variants, f.CacheTTLSeconds, nonNil(f.Tags), f.Version, f.CreatedAt, f.UpdatedAt,
	}, nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
