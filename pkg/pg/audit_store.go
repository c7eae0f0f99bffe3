package pg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
)

// Querier is the subset of *pgxpool.Pool the audit store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AuditStore is an append-only audit.Storage over the audit_log table.
type AuditStore struct {
	db Querier
}

var _ audit.Storage = (*AuditStore)(nil)

// NewAuditStore creates a store. Run Migrate first.
func NewAuditStore(db Querier) *AuditStore {
	return &AuditStore{db: db}
}

const insertAudit = `INSERT INTO audit_log (id, action, resource, resource_id, result, error, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *AuditStore) Store(ctx context.Context, e audit.Entry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = e.Metadata
	}
	_, err := s.db.Exec(ctx, insertAudit,
		e.ID, e.Action, e.Resource, e.ResourceID, string(e.Result), e.Error, metadata, e.CreatedAt,
	)
	if IsDuplicateKeyError(err) {
		return audit.ErrDuplicateEntry
	}
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries oldest first.
func (s *AuditStore) Query(ctx context.Context, c audit.Criteria) ([]audit.Entry, error) {
	sql, args := auditQuery(c)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Entry, error) {
		var (
			e      audit.Entry
			result string
		)
		err := row.Scan(&e.ID, &e.Action, &e.Resource, &e.ResourceID, &result, &e.Error, &e.Metadata, &e.CreatedAt)
		e.Result = audit.Result(result)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return out, nil
}

func auditQuery(c audit.Criteria) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if c.Action != "" {
		add("action = ?", c.Action)
	}
	if c.Resource != "" {
		add("resource = ?", c.Resource)
	}
	if c.ResourceID != "" {
		add("resource_id = ?", c.ResourceID)
	}
	if c.Result != "" {
		add("result = ?", string(c.Result))
	}
	if !c.Since.IsZero() {
		add("created_at >= ?", c.Since)
	}
	if !c.Until.IsZero() {
		add("created_at < ?", c.Until)
	}

	var b strings.Builder
	b.WriteString("SELECT id, action, resource, resource_id, result, error, metadata, created_at FROM audit_log")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at, id")
	if c.Limit > 0 {
		args = append(args, c.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if c.Offset > 0 {
		args = append(args, c.Offset)
		b.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}
