package catalog

import "context"

// Repo persists document types, organizations and their requirements.
type Repo interface {
	ListDocumentTypes(ctx context.Context) ([]DocumentType, error)
	GetDocumentType(ctx context.Context, id string) (DocumentType, error)
	CreateOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	// ReplaceRequirements swaps the organization's requirement set in one unit.
	ReplaceRequirements(ctx context.Context, orgID string, reqs []Requirement) error
	// ListRequirements is ordered by document type name, then id.
	ListRequirements(ctx context.Context, orgID string) ([]Requirement, error)
}
