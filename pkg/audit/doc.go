// Package audit records who changed what, and how serious it was.
//
// A Logger stamps each Event with an ID, timestamp, actor (from context, or
// "system"), request ID and client IP, then passes it to a Storage.
// Severity is info by default; emergency disables and detected attacks are
// logged as critical.
//
//	auditLog := audit.NewLogger(storage, audit.WithActorExtractor(audit.ActorFromContext))
//	_ = auditLog.Log(ctx, "flag.emergency_disable",
//		audit.WithSeverity(audit.SeverityCritical),
//		audit.WithResource("flag", key),
//		audit.WithDetail("reason", reason),
//	)
//
// Storages:
//
//   - MemoryStorage keeps events in memory.
//   - PostgresStorage inserts into audit_events using pgx batches; its schema
//     ships as an embedded goose migration set (Migrations).
//   - AsyncWriter wraps any BatchStorage and groups concurrent writes into
//     batches, flushing on size or timeout.
package audit
