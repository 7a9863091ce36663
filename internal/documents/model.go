package documents

import (
	"time"

	"kyc-backend/internal/extract"
	"kyc-backend/internal/fields"
)

// Document is an identity or compliance document owned by the individual who uploaded it.
type Document struct {
	ID               string
	OwnerID          string
	DocumentTypeID   string
	DocumentType     string
	FileName         string
	MimeType         string
	SizeBytes        int64
	StorageKey       string
	UploadedAt       time.Time
	ExpiresAt        time.Time
	Fields           fields.Record
	ExtractionStatus extract.Status
	ExtractionMethod extract.Method
	ExtractionError  string
}

// Expired reports whether the document's validity window has passed.
func (d Document) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

func (d *Document) applyResult(res extract.Result) {
	d.Fields = res.Fields
	d.ExtractionStatus = res.Status
	d.ExtractionMethod = res.Method
	if d.ExtractionMethod == "" {
		d.ExtractionMethod = extract.MethodNone
	}
	d.ExtractionError = res.Error
}

// Stats summarizes the document store for admins.
type Stats struct {
	Total    int            `json:"total"`
	Expired  int            `json:"expired"`
	ByStatus map[string]int `json:"byStatus"`
	ByType   map[string]int `json:"byType"`
}
