package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kyc-backend/internal/audit"
	"kyc-backend/internal/catalog"
	"kyc-backend/internal/extract"
	"kyc-backend/internal/fields"
	"kyc-backend/internal/shared/apperr"
	"kyc-backend/internal/shared/storage/object/local"
)

type typeLookup struct{ repo *catalog.MemoryRepo }

func (l typeLookup) DocumentType(ctx context.Context, id string) (catalog.DocumentType, error) {
	t, err := l.repo.GetDocumentType(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.DocumentType{}, apperr.NotFound("document type not found")
	}
	return t, err
}

// textExtractor runs the real field rules over the uploaded bytes.
type textExtractor struct {
	reg   *fields.Registry
	fail  map[string]error // keyed by file content
	calls int
}

func (e *textExtractor) Extract(_ context.Context, docType, _ string, raw []byte) (extract.Result, error) {
	e.calls++
	if err, ok := e.fail[string(raw)]; ok {
		return extract.Result{}, err
	}
	p := &extract.Pipeline{Text: passthrough{}, Fields: e.reg}
	return p.Extract(context.Background(), docType, "text/plain", raw)
}

type passthrough struct{}

func (passthrough) Text(_ context.Context, data []byte, _ string) (string, error) {
	return string(data), nil
}

type purger struct {
	mu   sync.Mutex
	docs []string
}

func (p *purger) PurgeDocument(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs = append(p.docs, id)
	return nil
}

type fixture struct {
	svc   *Service
	dir   string
	sink  *audit.MemorySink
	ext   *textExtractor
	purge *purger
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	sink := audit.NewMemorySink()
	ext := &textExtractor{reg: fields.Default(), fail: map[string]error{}}
	p := &purger{}
	svc := NewService(local.New(dir), NewMemoryRepo(), typeLookup{catalog.NewMemoryRepo()}, ext, p, audit.NewRecorder(sink, 0), nil)
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	return &fixture{svc: svc, dir: dir, sink: sink, ext: ext, purge: p, now: now}
}

func file(name, content string) Upload {
	return Upload{FileName: name, Content: strings.NewReader(content)}
}

const nationalID = "Full Name: Jane Doe ID Number: A1234567 DOB: 05/10/1990"

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return err
	})
	require.NoError(t, err)
	return n
}

func TestUploadBatchExtractsFields(t *testing.T) {
	f := newFixture(t)

	results, err := f.svc.UploadBatch(context.Background(), "owner-1",
		[]Upload{file("id.txt", nationalID), file("selfie.png", "\x89PNG\r\n\x1a\n")},
		[]string{"dt-national-id", "dt-selfie-with-id"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	doc := results[0].Document
	require.NotNil(t, doc)
	assert.Equal(t, extract.StatusSucceeded, doc.ExtractionStatus)
	assert.Equal(t, "Jane Doe", *doc.Fields["fullName"])
	assert.Equal(t, "National ID", doc.DocumentType)
	assert.Equal(t, f.now.AddDate(0, 0, 365), doc.ExpiresAt)

	selfie := results[1].Document
	require.NotNil(t, selfie)
	assert.Equal(t, extract.StatusSkipped, selfie.ExtractionStatus)

	docs, err := f.svc.List(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, []string{audit.ActionDocumentUploaded, audit.ActionDocumentUploaded}, f.sink.Actions())
}

func TestUploadBatchValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UploadBatch(ctx, "owner-1", nil, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.UploadBatch(ctx, "owner-1", []Upload{file("a.txt", "x")}, []string{"dt-passport", "dt-passport"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.UploadBatch(ctx, "owner-1",
		[]Upload{file("a.txt", nationalID), file("b.txt", "x")},
		[]string{"dt-national-id", "dt-unknown"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, 0, f.ext.calls)
	assert.Equal(t, 0, countFiles(t, f.dir))
}

func TestUploadBatchAttributesFailuresByIndex(t *testing.T) {
	f := newFixture(t)
	f.ext.fail["broken"] = apperr.StorageIO(errors.New("disk full"), "write ocr input")

	results, err := f.svc.UploadBatch(context.Background(), "owner-1",
		[]Upload{file("a.txt", nationalID), file("b.txt", "broken"), file("c.txt", "Passport Number: X1234567")},
		[]string{"dt-national-id", "dt-national-id", "dt-passport"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NotNil(t, results[0].Document)
	assert.Nil(t, results[1].Document)
	assert.Equal(t, 1, results[1].Index)
	assert.ErrorIs(t, results[1].Err, apperr.ErrStorageIO)
	assert.NotNil(t, results[2].Document)

	// The failed item's blob is compensated.
	assert.Equal(t, 2, countFiles(t, f.dir))
}

func TestUploadFailedExtractionStillStored(t *testing.T) {
	f := newFixture(t)

	results, err := f.svc.UploadBatch(context.Background(), "owner-1",
		[]Upload{file("blank.txt", "   ")}, []string{"dt-passport"})
	require.NoError(t, err)
	doc := results[0].Document
	require.NotNil(t, doc)
	assert.Equal(t, extract.StatusFailed, doc.ExtractionStatus)
	assert.Equal(t, fields.Record{"fullName": nil, "passportNumber": nil, "nationality": nil}, doc.Fields)
}

func upload(t *testing.T, f *fixture, owner, typeID, content string) Document {
	t.Helper()
	results, err := f.svc.UploadBatch(context.Background(), owner, []Upload{file("doc.txt", content)}, []string{typeID})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	return *results[0].Document
}

func TestReUploadReplacesBlobAndFields(t *testing.T) {
	f := newFixture(t)
	doc := upload(t, f, "owner-1", "dt-national-id", nationalID)

	later := f.now.Add(48 * time.Hour)
	f.svc.Now = func() time.Time { return later }

	updated, err := f.svc.ReUpload(context.Background(), "owner-1", doc.ID,
		file("new.txt", "Full Name: John Roe ID Number: B7654321 DOB: 01/01/1980"))
	require.NoError(t, err)
	assert.Equal(t, "John Roe", *updated.Fields["fullName"])
	assert.NotEqual(t, doc.StorageKey, updated.StorageKey)
	assert.Equal(t, later, updated.UploadedAt)
	assert.Equal(t, later.AddDate(0, 0, 365), updated.ExpiresAt)
	assert.Equal(t, 1, countFiles(t, f.dir))

	_, err = f.svc.ReUpload(context.Background(), "owner-2", doc.ID, file("x.txt", "x"))
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestReExtractUsesStoredBlob(t *testing.T) {
	f := newFixture(t)
	doc := upload(t, f, "owner-1", "dt-national-id", nationalID)

	_, err := f.svc.ReExtract(context.Background(), "owner-2", doc.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	got, err := f.svc.ReExtractByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "A1234567", *got.Fields["idNumber"])
	assert.Contains(t, f.sink.Actions(), audit.ActionDocumentReExtracted)
}

func TestDeletePurgesGrantsAndBlob(t *testing.T) {
	f := newFixture(t)
	doc := upload(t, f, "owner-1", "dt-national-id", nationalID)

	err := f.svc.Delete(context.Background(), "owner-2", doc.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	require.NoError(t, f.svc.Delete(context.Background(), "owner-1", doc.ID))
	assert.Equal(t, []string{doc.ID}, f.purge.docs)
	assert.Equal(t, 0, countFiles(t, f.dir))

	_, err = f.svc.Find(context.Background(), doc.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), "owner-1", doc.ID), apperr.ErrNotFound)
}

func TestOpenStreamsOriginalBytes(t *testing.T) {
	f := newFixture(t)
	doc := upload(t, f, "owner-1", "dt-national-id", nationalID)

	rc, err := f.svc.Open(context.Background(), doc)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, nationalID, string(data))
}

func TestStatsCountsExpired(t *testing.T) {
	f := newFixture(t)
	upload(t, f, "owner-1", "dt-utility-bill", "Account Name: Mary Jane")
	upload(t, f, "owner-1", "dt-national-id", nationalID)

	f.svc.Now = func() time.Time { return f.now.AddDate(0, 0, 100) }
	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 2, stats.ByStatus["succeeded"])
	assert.Equal(t, 1, stats.ByType["Utility Bill"])
}

func TestExportWritesOneRowPerDocument(t *testing.T) {
	f := newFixture(t)
	doc := upload(t, f, "owner-1", "dt-national-id", nationalID)
	upload(t, f, "owner-2", "dt-passport", "Passport Number: X1234567")

	data, err := f.svc.Export(context.Background(), "admin-1", fields.Default().Columns())
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	rows, err := wb.GetRows("Extracted Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, []string{"Document ID", "Owner ID", "Document Type", "fullName"}, header[:4])
	assert.Equal(t, "Uploaded At", header[len(header)-1])

	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}
	assert.Equal(t, doc.ID, rows[1][0])
	assert.Equal(t, "A1234567", rows[1][col("idNumber")])
	assert.Equal(t, "X1234567", rows[2][col("passportNumber")])
	assert.Equal(t, f.now.Format(time.RFC3339), rows[1][col("Uploaded At")])
	assert.Contains(t, f.sink.Actions(), audit.ActionExtractedDataExport)
}
