package documents

import (
	"time"

	"kyc-backend/internal/fields"
	"kyc-backend/internal/shared/apperr"
)

type extractionResponse struct {
	Status string `json:"status"`
	Method string `json:"method"`
	Error  string `json:"error,omitempty"`
}

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID     string             `json:"documentId"`
	DocumentTypeID string             `json:"documentTypeId"`
	DocumentType   string             `json:"documentType"`
	FileName       string             `json:"fileName"`
	MimeType       string             `json:"mimeType"`
	SizeBytes      int64              `json:"sizeBytes"`
	UploadedAt     time.Time          `json:"uploadedAt"`
	ExpiresAt      time.Time          `json:"expiresAt"`
	Expired        bool               `json:"expired"`
	Fields         fields.Record      `json:"fields"`
	Extraction     extractionResponse `json:"extraction"`
}

type itemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type uploadItemResponse struct {
	Index    int               `json:"index"`
	Document *DocumentResponse `json:"document,omitempty"`
	Error    *itemError        `json:"error,omitempty"`
}

type uploadBatchResponse struct {
	Items     []uploadItemResponse `json:"items"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

type metadataResponse struct {
	DocumentID   string        `json:"documentId"`
	DocumentType string        `json:"documentType"`
	FileName     string        `json:"fileName"`
	MimeType     string        `json:"mimeType"`
	SizeBytes    int64         `json:"sizeBytes"`
	UploadedAt   time.Time     `json:"uploadedAt"`
	ExpiresAt    time.Time     `json:"expiresAt"`
	Fields       fields.Record `json:"fields"`
}

func toResponse(doc Document, now time.Time) DocumentResponse {
	return DocumentResponse{
		DocumentID:     doc.ID,
		DocumentTypeID: doc.DocumentTypeID,
		DocumentType:   doc.DocumentType,
		FileName:       doc.FileName,
		MimeType:       doc.MimeType,
		SizeBytes:      doc.SizeBytes,
		UploadedAt:     doc.UploadedAt,
		ExpiresAt:      doc.ExpiresAt,
		Expired:        doc.Expired(now),
		Fields:         doc.Fields,
		Extraction: extractionResponse{
			Status: string(doc.ExtractionStatus),
			Method: string(doc.ExtractionMethod),
			Error:  doc.ExtractionError,
		},
	}
}

func toBatchResponse(results []ItemResult, now time.Time) uploadBatchResponse {
	out := uploadBatchResponse{Items: make([]uploadItemResponse, 0, len(results))}
	for _, r := range results {
		item := uploadItemResponse{Index: r.Index}
		if r.Err != nil {
			item.Error = &itemError{Code: string(apperr.KindOf(r.Err)), Message: apperr.MessageOf(r.Err)}
			out.Failed++
		} else {
			resp := toResponse(*r.Document, now)
			item.Document = &resp
			out.Succeeded++
		}
		out.Items = append(out.Items, item)
	}
	return out
}

func toMetadata(doc Document) metadataResponse {
	return metadataResponse{
		DocumentID:   doc.ID,
		DocumentType: doc.DocumentType,
		FileName:     doc.FileName,
		MimeType:     doc.MimeType,
		SizeBytes:    doc.SizeBytes,
		UploadedAt:   doc.UploadedAt,
		ExpiresAt:    doc.ExpiresAt,
		Fields:       doc.Fields,
	}
}
