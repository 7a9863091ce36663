package documents

import "context"

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (Document, error)
	// ListByOwner returns newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Document, error)
	// ListAll returns oldest first.
	ListAll(ctx context.Context) ([]Document, error)
	// Replace overwrites the blob locator, timestamps and extraction outcome.
	Replace(ctx context.Context, doc Document) error
	UpdateExtraction(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error
}
