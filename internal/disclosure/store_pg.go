package disclosure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kyc-backend/internal/shared/storage/db"
)

const defaultTxTimeout = 5 * time.Second

// PGStore implements Repository on Postgres or SQLite.
type PGStore struct {
	pgQueries
	DB *sql.DB
}

func NewPGStore(conn *sql.DB, dialect db.Dialect) *PGStore {
	return &PGStore{pgQueries: pgQueries{q: conn, d: dialect}, DB: conn}
}

func (s *PGStore) RunInTx(ctx context.Context, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(pgQueries{q: tx, d: s.d}); err != nil {
		return err
	}
	return tx.Commit()
}

type pgQueries struct {
	q db.Querier
	d db.Dialect
}

const requestColumns = `id, organization_id, owner_id, purpose, status, requested_at, valid_until, decided_at, decided_by, revoked_at`

func (p pgQueries) CreateRequest(ctx context.Context, r Request) error {
	const query = `
INSERT INTO disclosure_requests (id, organization_id, owner_id, purpose, status, requested_at, valid_until)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.q.ExecContext(ctx, p.d.Rebind(query),
		r.ID, r.OrganizationID, r.OwnerID, r.Purpose, string(r.Status), r.RequestedAt, nullTime(r.ValidUntil))
	if db.IsUniqueViolation(err) {
		return ErrDuplicatePending
	}
	return err
}

func (p pgQueries) GetRequest(ctx context.Context, id string) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM disclosure_requests WHERE id = $1`
	r, err := scanRequest(p.q.QueryRowContext(ctx, p.d.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return r, err
}

func (p pgQueries) ListRequests(ctx context.Context, f Filter) ([]Request, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, val string) {
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.OwnerID != "" {
		add("owner_id", f.OwnerID)
	}
	if f.OrganizationID != "" {
		add("organization_id", f.OrganizationID)
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	query := `SELECT ` + requestColumns + ` FROM disclosure_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY requested_at DESC, id`

	rows, err := p.q.QueryContext(ctx, p.d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p pgQueries) TransitionRequest(ctx context.Context, t Transition) error {
	var (
		res sql.Result
		err error
	)
	if t.To == StatusRevoked {
		const query = `
UPDATE disclosure_requests
SET status = $1, revoked_at = $2
WHERE id = $3 AND status = $4`
		res, err = p.q.ExecContext(ctx, p.d.Rebind(query), string(t.To), t.At, t.RequestID, string(t.From))
	} else {
		const query = `
UPDATE disclosure_requests
SET status = $1, decided_at = $2, decided_by = $3
WHERE id = $4 AND status = $5`
		res, err = p.q.ExecContext(ctx, p.d.Rebind(query), string(t.To), t.At, t.Actor, t.RequestID, string(t.From))
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (p pgQueries) InsertGrants(ctx context.Context, grants []Grant) error {
	const query = `
INSERT INTO permission_grants (id, request_id, document_id, access_level, granted_at)
VALUES ($1, $2, $3, $4, $5)`
	for _, g := range grants {
		_, err := p.q.ExecContext(ctx, p.d.Rebind(query), g.ID, g.RequestID, g.DocumentID, string(g.Level), g.GrantedAt)
		if db.IsUniqueViolation(err) {
			return ErrDuplicateGrant
		}
		if err != nil {
			return fmt.Errorf("insert grant %s: %w", g.DocumentID, err)
		}
	}
	return nil
}

func (p pgQueries) ListGrants(ctx context.Context, requestID string) ([]Grant, error) {
	const query = `
SELECT id, request_id, document_id, access_level, granted_at
FROM permission_grants
WHERE request_id = $1
ORDER BY granted_at, id`
	rows, err := p.q.QueryContext(ctx, p.d.Rebind(query), requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var g Grant
		var level string
		if err := rows.Scan(&g.ID, &g.RequestID, &g.DocumentID, &level, &g.GrantedAt); err != nil {
			return nil, err
		}
		g.Level = AccessLevel(level)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p pgQueries) DeleteGrantsByRequest(ctx context.Context, requestID string) (int64, error) {
	res, err := p.q.ExecContext(ctx, p.d.Rebind(`DELETE FROM permission_grants WHERE request_id = $1`), requestID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p pgQueries) DeleteGrantsByDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := p.q.ExecContext(ctx, p.d.Rebind(`DELETE FROM permission_grants WHERE document_id = $1`), documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p pgQueries) AccessGrants(ctx context.Context, orgID, documentID string) ([]AccessGrant, error) {
	const query = `
SELECT g.id, g.request_id, g.document_id, g.access_level, g.granted_at,
       r.organization_id, r.owner_id, r.status, r.valid_until
FROM permission_grants g
JOIN disclosure_requests r ON r.id = g.request_id
WHERE r.organization_id = $1 AND g.document_id = $2
ORDER BY g.granted_at, g.id`
	rows, err := p.q.QueryContext(ctx, p.d.Rebind(query), orgID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccessGrant
	for rows.Next() {
		var g AccessGrant
		var level, status string
		var validUntil sql.NullTime
		if err := rows.Scan(&g.ID, &g.RequestID, &g.DocumentID, &level, &g.GrantedAt,
			&g.OrganizationID, &g.OwnerID, &status, &validUntil); err != nil {
			return nil, err
		}
		g.Level = AccessLevel(level)
		g.Status = Status(status)
		g.ValidUntil = timePtr(validUntil)
		out = append(out, g)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var r Request
	var status string
	var validUntil, decidedAt, revokedAt sql.NullTime
	var decidedBy sql.NullString
	err := row.Scan(&r.ID, &r.OrganizationID, &r.OwnerID, &r.Purpose, &status, &r.RequestedAt,
		&validUntil, &decidedAt, &decidedBy, &revokedAt)
	if err != nil {
		return Request{}, err
	}
	r.Status = Status(status)
	r.ValidUntil = timePtr(validUntil)
	r.DecidedAt = timePtr(decidedAt)
	r.RevokedAt = timePtr(revokedAt)
	if decidedBy.Valid {
		r.DecidedBy = decidedBy.String
	}
	return r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
