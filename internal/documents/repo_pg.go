package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"kyc-backend/internal/extract"
	"kyc-backend/internal/fields"
	"kyc-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres or SQLite.
type PGRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

const selectColumns = `
SELECT d.id, d.owner_id, d.document_type_id, t.name, d.file_name, d.mime_type, d.size_bytes, d.storage_key,
       d.uploaded_at, d.expires_at, d.fields, d.extraction_status, d.extraction_method, d.extraction_error
FROM documents d
JOIN document_types t ON t.id = d.document_type_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    owner_id,
    document_type_id,
    file_name,
    mime_type,
    size_bytes,
    storage_key,
    uploaded_at,
    expires_at,
    fields,
    extraction_status,
    extraction_method,
    extraction_error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	payload, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		doc.ID,
		doc.OwnerID,
		doc.DocumentTypeID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.UploadedAt,
		doc.ExpiresAt,
		payload,
		string(doc.ExtractionStatus),
		string(doc.ExtractionMethod),
		nullString(doc.ExtractionError),
	)
	return err
}

func (r *PGRepo) Get(ctx context.Context, id string) (Document, error) {
	query := selectColumns + `
WHERE d.id = $1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string) ([]Document, error) {
	query := selectColumns + `
WHERE d.owner_id = $1
ORDER BY d.uploaded_at DESC, d.id`
	return r.list(ctx, r.Dialect.Rebind(query), ownerID)
}

func (r *PGRepo) ListAll(ctx context.Context) ([]Document, error) {
	query := selectColumns + `
ORDER BY d.uploaded_at, d.id`
	return r.list(ctx, query)
}

func (r *PGRepo) list(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *PGRepo) Replace(ctx context.Context, doc Document) error {
	const query = `
UPDATE documents
SET file_name = $1,
    mime_type = $2,
    size_bytes = $3,
    storage_key = $4,
    uploaded_at = $5,
    expires_at = $6,
    fields = $7,
    extraction_status = $8,
    extraction_method = $9,
    extraction_error = $10
WHERE id = $11`
	payload, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.UploadedAt,
		doc.ExpiresAt,
		payload,
		string(doc.ExtractionStatus),
		string(doc.ExtractionMethod),
		nullString(doc.ExtractionError),
		doc.ID,
	)
	return affectedOne(res, err)
}

func (r *PGRepo) UpdateExtraction(ctx context.Context, doc Document) error {
	const query = `
UPDATE documents
SET fields = $1,
    extraction_status = $2,
    extraction_method = $3,
    extraction_error = $4
WHERE id = $5`
	payload, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		payload,
		string(doc.ExtractionStatus),
		string(doc.ExtractionMethod),
		nullString(doc.ExtractionError),
		doc.ID,
	)
	return affectedOne(res, err)
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM documents WHERE id = $1`), id)
	return affectedOne(res, err)
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var payload []byte
	var status, method string
	var extractionErr sql.NullString
	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.DocumentTypeID,
		&doc.DocumentType,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&doc.UploadedAt,
		&doc.ExpiresAt,
		&payload,
		&status,
		&method,
		&extractionErr,
	)
	if err != nil {
		return Document{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &doc.Fields); err != nil {
			return Document{}, fmt.Errorf("decode fields for %s: %w", doc.ID, err)
		}
	}
	doc.ExtractionStatus = extract.Status(status)
	doc.ExtractionMethod = extract.Method(method)
	if extractionErr.Valid {
		doc.ExtractionError = extractionErr.String
	}
	return doc, nil
}

func encodeFields(rec fields.Record) (any, error) {
	if rec == nil {
		return nil, nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return string(payload), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
