// Package pg connects to PostgreSQL and provides the Postgres audit log
// backend.
//
// Connect opens a pgx pool with retries. Migrate applies the embedded goose
// migrations that create the audit_log table, and AuditStore implements
// audit.Storage on it.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//	auditor := audit.NewLogger(pg.NewAuditStore(pool))
//
// Errors wrap the package sentinels, so callers can use errors.Is.
package pg
