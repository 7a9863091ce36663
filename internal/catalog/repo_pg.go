package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kyc-backend/internal/shared/storage/db"
)

// PGRepo implements Repo on Postgres or SQLite.
type PGRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func (r *PGRepo) q(query string) string { return r.Dialect.Rebind(query) }

func (r *PGRepo) ListDocumentTypes(ctx context.Context) ([]DocumentType, error) {
	const query = `
SELECT id, name, validity_days
FROM document_types
ORDER BY name, id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentType
	for rows.Next() {
		var t DocumentType
		if err := rows.Scan(&t.ID, &t.Name, &t.ValidityDays); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetDocumentType(ctx context.Context, id string) (DocumentType, error) {
	const query = `SELECT id, name, validity_days FROM document_types WHERE id = $1`
	var t DocumentType
	err := r.DB.QueryRowContext(ctx, r.q(query), id).Scan(&t.ID, &t.Name, &t.ValidityDays)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentType{}, ErrNotFound
		}
		return DocumentType{}, err
	}
	return t, nil
}

func (r *PGRepo) CreateOrganization(ctx context.Context, org Organization) error {
	const query = `
INSERT INTO organizations (id, name, sector, created_at)
VALUES ($1, $2, $3, $4)`
	_, err := r.DB.ExecContext(ctx, r.q(query), org.ID, org.Name, org.Sector, org.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PGRepo) GetOrganization(ctx context.Context, id string) (Organization, error) {
	const query = `SELECT id, name, sector, created_at FROM organizations WHERE id = $1`
	var org Organization
	err := r.DB.QueryRowContext(ctx, r.q(query), id).Scan(&org.ID, &org.Name, &org.Sector, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return org, nil
}

func (r *PGRepo) ListOrganizations(ctx context.Context) ([]Organization, error) {
	const query = `SELECT id, name, sector, created_at FROM organizations ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Sector, &org.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

func (r *PGRepo) ReplaceRequirements(ctx context.Context, orgID string, reqs []Requirement) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, r.q(`SELECT 1 FROM organizations WHERE id = $1`), orgID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err = tx.ExecContext(ctx, r.q(`DELETE FROM organization_requirements WHERE organization_id = $1`), orgID); err != nil {
		return fmt.Errorf("clear requirements: %w", err)
	}

	const insert = `
INSERT INTO organization_requirements (organization_id, document_type_id, mandatory, valid_for_days)
VALUES ($1, $2, $3, $4)`
	for _, req := range reqs {
		if _, err = tx.ExecContext(ctx, r.q(insert), orgID, req.DocumentTypeID, req.Mandatory, req.ValidForDays); err != nil {
			return fmt.Errorf("insert requirement %s: %w", req.DocumentTypeID, err)
		}
	}
	return tx.Commit()
}

func (r *PGRepo) ListRequirements(ctx context.Context, orgID string) ([]Requirement, error) {
	const query = `
SELECT r.organization_id, r.document_type_id, t.name, r.mandatory, r.valid_for_days
FROM organization_requirements r
JOIN document_types t ON t.id = r.document_type_id
WHERE r.organization_id = $1
ORDER BY t.name, r.document_type_id`
	rows, err := r.DB.QueryContext(ctx, r.q(query), orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Requirement
	for rows.Next() {
		var req Requirement
		if err := rows.Scan(&req.OrganizationID, &req.DocumentTypeID, &req.DocumentType, &req.Mandatory, &req.ValidForDays); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
