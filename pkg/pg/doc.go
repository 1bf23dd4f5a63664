// Package pg wires PostgreSQL through pgx/v5 and goose.
//
// Connect opens a pgxpool with retries. Migrate runs embedded goose
// migration sets, one version table per set, over a database/sql bridge
// (pgx/v5/stdlib). Packages that own tables export their migrations:
//
//	err := pg.Migrate(ctx, pool, cfg, log,
//		flagsource.Migrations(),
//		audit.Migrations(),
//	)
//
// IsNotFoundError and IsDuplicateKeyError classify driver errors so callers
// can map them to their own sentinels.
package pg
