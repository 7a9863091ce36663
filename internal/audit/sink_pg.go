package audit

import (
	"context"
	"database/sql"
	"fmt"

	"kyc-backend/internal/shared/storage/db"
)

// PGSink appends events to the audit_events table.
type PGSink struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func (s *PGSink) Write(ctx context.Context, e Event) error {
	const query = `
INSERT INTO audit_events (id, actor_id, action, target_type, target_id, detail, outcome, request_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.DB.ExecContext(ctx, s.Dialect.Rebind(query),
		e.ID, e.ActorID, e.Action, e.TargetType, e.TargetID, e.Detail, e.Outcome, e.RequestID, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PGSink) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT id, actor_id, action, target_type, target_id, detail, outcome, request_id, occurred_at
FROM audit_events
ORDER BY occurred_at DESC, id DESC
LIMIT $1`
	rows, err := s.DB.QueryContext(ctx, s.Dialect.Rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID, &e.Detail, &e.Outcome, &e.RequestID, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
