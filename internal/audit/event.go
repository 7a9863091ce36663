// Package audit records who did what to which document or disclosure. Writes
// are best-effort: a failing sink is logged and counted, never surfaced to
// the operation being audited.
package audit

import (
	"context"
	"time"
)

// Actions emitted by the services.
const (
	ActionDocumentUploaded    = "document_uploaded"
	ActionDocumentUpdated     = "document_updated"
	ActionDocumentReExtracted = "document_reextracted"
	ActionDocumentDeleted     = "document_deleted"
	ActionDisclosureRequested = "disclosure_requested"
	ActionDisclosureApproved  = "disclosure_approved"
	ActionDisclosureRejected  = "disclosure_rejected"
	ActionDisclosureRevoked   = "disclosure_revoked"
	ActionAccessAllowed       = "access_allowed"
	ActionAccessDenied        = "access_denied"
	ActionOrganizationCreated = "organization_registered"
	ActionRequirementsUpdated = "requirements_updated"
	ActionExtractedDataExport = "extracted_data_exported"
)

// Event is one audit record.
type Event struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	TargetType string    `json:"targetType"`
	TargetID   string    `json:"targetId"`
	Detail     string    `json:"detail,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Sink persists events.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Lister reads back the most recent events, newest first.
type Lister interface {
	List(ctx context.Context, limit int) ([]Event, error)
}

// Recorder is what services depend on.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}
