package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// MigrationSet is a directory of goose SQL files embedded by the package
// that owns the schema.
type MigrationSet struct {
	Name string
	FS   fs.FS
	Dir  string
}

// goose configuration lives in package globals.
var gooseMu sync.Mutex

// Migrate applies each set in order. Every set tracks its version in
// <MigrationsTable>_<Name>, so the flag and audit schemas evolve separately.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log *slog.Logger, sets ...MigrationSet) error {
	if len(sets) == 0 {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("migrations"))

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.WarnContext(ctx, "closing migration handle", logger.Error(err))
		}
	}()

	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetLogger(gooseLog{log})
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrate, err)
	}

	for _, set := range sets {
		if set.FS == nil || set.Dir == "" {
			return errors.Join(ErrMigrate, fmt.Errorf("set %q has no filesystem", set.Name))
		}
		if _, err := fs.Stat(set.FS, set.Dir); err != nil {
			return errors.Join(ErrMigrate, err)
		}
		goose.SetBaseFS(set.FS)
		goose.SetTableName(cfg.MigrationsTable + "_" + set.Name)
		if err := goose.UpContext(ctx, db, set.Dir); err != nil {
			return errors.Join(ErrMigrate, fmt.Errorf("%s: %w", set.Name, err))
		}
		log.InfoContext(ctx, "migrations applied", slog.String("set", set.Name))
	}
	return nil
}

// gooseLog routes goose output into slog. Fatalf is logged, not fatal.
type gooseLog struct{ log *slog.Logger }

func (g gooseLog) Printf(format string, v ...any) {
	g.log.Info(fmt.Sprintf(format, v...))
}

func (g gooseLog) Fatalf(format string, v ...any) {
	g.log.Error(fmt.Sprintf(format, v...))
}
