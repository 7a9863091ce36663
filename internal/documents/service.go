package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"kyc-backend/internal/audit"
	"kyc-backend/internal/catalog"
	"kyc-backend/internal/extract"
	"kyc-backend/internal/shared/apperr"
	"kyc-backend/internal/shared/storage/object"
)

// MaxFileSize bounds a single uploaded file.
const MaxFileSize = 10 << 20

// Extractor produces structured fields for a document.
type Extractor interface {
	Extract(ctx context.Context, docType, mimeType string, raw []byte) (extract.Result, error)
}

// TypeLookup resolves document type ids.
type TypeLookup interface {
	DocumentType(ctx context.Context, id string) (catalog.DocumentType, error)
}

// GrantPurger removes every permission grant that references a document.
type GrantPurger interface {
	PurgeDocument(ctx context.Context, documentID string) error
}

// Upload is one file in a batch.
type Upload struct {
	FileName string
	Content  io.Reader
}

// ItemResult is the outcome of one file in a batch, attributed by index.
type ItemResult struct {
	Index    int
	Document *Document
	Err      error
}

// Service contains business logic for documents.
type Service struct {
	Store     object.ObjectStore
	Repo      Repo
	Types     TypeLookup
	Extractor Extractor
	Grants    GrantPurger
	Audit     audit.Recorder
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

func NewService(store object.ObjectStore, repo Repo, types TypeLookup, extractor Extractor, grants GrantPurger, rec audit.Recorder, logger *slog.Logger) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:     store,
		Repo:      repo,
		Types:     types,
		Extractor: extractor,
		Grants:    grants,
		Audit:     rec,
		Logger:    logger,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// UploadBatch stores and extracts files in caller order. Batch-level input
// problems are returned as an error before anything is written; per-file
// failures are reported in the matching ItemResult and do not stop the batch.
func (s *Service) UploadBatch(ctx context.Context, ownerID string, files []Upload, typeIDs []string) ([]ItemResult, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("owner is required")
	}
	if len(files) == 0 {
		return nil, apperr.Validation("at least one file is required")
	}
	if len(files) != len(typeIDs) {
		return nil, apperr.Validation(fmt.Sprintf("got %d files and %d document types", len(files), len(typeIDs)))
	}

	types := make([]catalog.DocumentType, len(typeIDs))
	for i, id := range typeIDs {
		if strings.TrimSpace(files[i].FileName) == "" {
			return nil, apperr.Validation(fmt.Sprintf("files[%d]: file name is required", i))
		}
		t, err := s.Types.DocumentType(ctx, strings.TrimSpace(id))
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Validation(fmt.Sprintf("documentTypeIds[%d]: unknown document type %q", i, id))
			}
			return nil, err
		}
		types[i] = t
	}

	results := make([]ItemResult, 0, len(files))
	for i, f := range files {
		doc, err := s.uploadOne(ctx, ownerID, f, types[i])
		if err != nil {
			s.Logger.Warn("document upload failed", "owner_id", ownerID, "index", i, "error", err)
			results = append(results, ItemResult{Index: i, Err: err})
			continue
		}
		results = append(results, ItemResult{Index: i, Document: &doc})
	}
	return results, nil
}

func (s *Service) uploadOne(ctx context.Context, ownerID string, f Upload, t catalog.DocumentType) (Document, error) {
	data, key, mime, err := s.saveBlob(ctx, ownerID, f)
	if err != nil {
		return Document{}, err
	}

	res, err := s.Extractor.Extract(ctx, t.Name, mime, data)
	if err != nil {
		s.discardBlob(ctx, key)
		return Document{}, err
	}

	now := s.Now().UTC()
	doc := Document{
		ID:             s.NewID(),
		OwnerID:        ownerID,
		DocumentTypeID: t.ID,
		DocumentType:   t.Name,
		FileName:       f.FileName,
		MimeType:       mime,
		SizeBytes:      int64(len(data)),
		StorageKey:     key,
		UploadedAt:     now,
		ExpiresAt:      now.AddDate(0, 0, t.Validity()),
	}
	doc.applyResult(res)

	if err := s.Repo.Create(ctx, doc); err != nil {
		s.discardBlob(ctx, key)
		return Document{}, apperr.StorageIO(err, "persist document")
	}

	s.Audit.Record(ctx, audit.Event{
		ActorID:    ownerID,
		Action:     audit.ActionDocumentUploaded,
		TargetType: "document",
		TargetID:   doc.ID,
		Detail:     t.Name,
		Outcome:    string(doc.ExtractionStatus),
	})
	return doc, nil
}

func (s *Service) saveBlob(ctx context.Context, ownerID string, f Upload) ([]byte, string, string, error) {
	if f.Content == nil {
		return nil, "", "", apperr.Validation("file content is required")
	}
	data, err := io.ReadAll(io.LimitReader(f.Content, MaxFileSize+1))
	if err != nil {
		return nil, "", "", apperr.StorageIO(err, "read upload")
	}
	if len(data) > MaxFileSize {
		return nil, "", "", apperr.Validation("file exceeds maximum size")
	}
	key, _, mime, err := s.Store.Save(ctx, ownerID, f.FileName, bytes.NewReader(data))
	if err != nil {
		return nil, "", "", apperr.StorageIO(err, "store document")
	}
	return data, key, mime, nil
}

func (s *Service) discardBlob(ctx context.Context, key string) {
	if err := s.Store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.Logger.Warn("document blob cleanup failed", "storage_key", key, "error", err)
	}
}

// ReUpload replaces the file behind an existing document and re-extracts it.
func (s *Service) ReUpload(ctx context.Context, ownerID, docID string, f Upload) (Document, error) {
	if strings.TrimSpace(f.FileName) == "" {
		return Document{}, apperr.Validation("file name is required")
	}
	doc, err := s.Get(ctx, ownerID, docID)
	if err != nil {
		return Document{}, err
	}
	t, err := s.Types.DocumentType(ctx, doc.DocumentTypeID)
	if err != nil {
		return Document{}, err
	}

	data, key, mime, err := s.saveBlob(ctx, ownerID, f)
	if err != nil {
		return Document{}, err
	}
	res, err := s.Extractor.Extract(ctx, t.Name, mime, data)
	if err != nil {
		s.discardBlob(ctx, key)
		return Document{}, err
	}

	oldKey := doc.StorageKey
	now := s.Now().UTC()
	doc.FileName = f.FileName
	doc.MimeType = mime
	doc.SizeBytes = int64(len(data))
	doc.StorageKey = key
	doc.UploadedAt = now
	doc.ExpiresAt = now.AddDate(0, 0, t.Validity())
	doc.applyResult(res)

	if err := s.Repo.Replace(ctx, doc); err != nil {
		s.discardBlob(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return Document{}, apperr.NotFound("document not found")
		}
		return Document{}, apperr.StorageIO(err, "persist document")
	}
	s.discardBlob(ctx, oldKey)

	s.Audit.Record(ctx, audit.Event{
		ActorID:    ownerID,
		Action:     audit.ActionDocumentUpdated,
		TargetType: "document",
		TargetID:   doc.ID,
		Outcome:    string(doc.ExtractionStatus),
	})
	return doc, nil
}

// ReExtract re-runs the pipeline over the stored file for its owner.
func (s *Service) ReExtract(ctx context.Context, ownerID, docID string) (Document, error) {
	doc, err := s.Get(ctx, ownerID, docID)
	if err != nil {
		return Document{}, err
	}
	return s.reExtract(ctx, ownerID, doc)
}

// ReExtractByID is the system entry point used by the background worker.
func (s *Service) ReExtractByID(ctx context.Context, docID string) (Document, error) {
	doc, err := s.Find(ctx, docID)
	if err != nil {
		return Document{}, err
	}
	return s.reExtract(ctx, "system", doc)
}

func (s *Service) reExtract(ctx context.Context, actorID string, doc Document) (Document, error) {
	rc, err := s.openBlob(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return Document{}, apperr.StorageIO(err, "read document")
	}

	res, err := s.Extractor.Extract(ctx, doc.DocumentType, doc.MimeType, data)
	if err != nil {
		return Document{}, err
	}
	doc.applyResult(res)
	if err := s.Repo.UpdateExtraction(ctx, doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, apperr.NotFound("document not found")
		}
		return Document{}, err
	}

	s.Audit.Record(ctx, audit.Event{
		ActorID:    actorID,
		Action:     audit.ActionDocumentReExtracted,
		TargetType: "document",
		TargetID:   doc.ID,
		Outcome:    string(doc.ExtractionStatus),
	})
	return doc, nil
}

// Delete removes a document and every grant that references it.
func (s *Service) Delete(ctx context.Context, ownerID, docID string) error {
	doc, err := s.Get(ctx, ownerID, docID)
	if err != nil {
		return err
	}
	if s.Grants != nil {
		if err := s.Grants.PurgeDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("purge grants: %w", err)
		}
	}
	if err := s.Repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("document not found")
		}
		return err
	}
	s.discardBlob(ctx, doc.StorageKey)

	s.Audit.Record(ctx, audit.Event{
		ActorID:    ownerID,
		Action:     audit.ActionDocumentDeleted,
		TargetType: "document",
		TargetID:   doc.ID,
		Detail:     doc.DocumentType,
	})
	return nil
}

// Get returns a document only to its owner.
func (s *Service) Get(ctx context.Context, ownerID, docID string) (Document, error) {
	doc, err := s.Find(ctx, docID)
	if err != nil {
		return Document{}, err
	}
	if doc.OwnerID != ownerID {
		return Document{}, apperr.Forbidden("document belongs to another owner")
	}
	return doc, nil
}

// Find loads a document without an ownership check.
func (s *Service) Find(ctx context.Context, docID string) (Document, error) {
	doc, err := s.Repo.Get(ctx, docID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, apperr.NotFound("document not found")
		}
		return Document{}, err
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]Document, error) {
	return s.Repo.ListByOwner(ctx, ownerID)
}

// Open streams the stored file.
func (s *Service) Open(ctx context.Context, doc Document) (io.ReadCloser, error) {
	return s.openBlob(ctx, doc)
}

func (s *Service) openBlob(ctx context.Context, doc Document) (io.ReadCloser, error) {
	rc, err := s.Store.Open(ctx, doc.StorageKey)
	if errors.Is(err, object.ErrMissing) {
		return nil, apperr.Wrap(err, apperr.KindNotFound, "document file missing")
	}
	if err != nil {
		return nil, apperr.StorageIO(err, "open document")
	}
	return rc, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	docs, err := s.Repo.ListAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	now := s.Now()
	stats := Stats{ByStatus: map[string]int{}, ByType: map[string]int{}}
	for _, d := range docs {
		stats.Total++
		if d.Expired(now) {
			stats.Expired++
		}
		stats.ByStatus[string(d.ExtractionStatus)]++
		stats.ByType[d.DocumentType]++
	}
	return stats, nil
}
