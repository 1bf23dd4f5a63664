package audit

import (
	"context"
	"embed"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/flaggate/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the goose migration set for the audit_events table.
func Migrations() pg.MigrationSet {
	return pg.MigrationSet{Name: "audit", FS: migrations, Dir: "migrations"}
}

const insertEventSQL = `
INSERT INTO audit_events (id, actor, action, resource, resource_id, severity, result, error, request_id, ip, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// PostgresStorage writes events to audit_events. StoreBatch queues all
// inserts in one pgx.Batch so AsyncWriter flushes cost a single round trip.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) Store(ctx context.Context, event Event) error {
	return s.StoreBatch(ctx, []Event{event})
}

func (s *PostgresStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return errors.Join(ErrInvalidEvent, err)
		}
		batch.Queue(insertEventSQL,
			e.ID, e.Actor, e.Action, e.Resource, e.ResourceID, string(e.Severity),
			string(e.Result), e.Error, e.RequestID, e.IP, details, e.CreatedAt,
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}
