package disclosure

import "context"

// Store persists requests and grants.
type Store interface {
	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
	// ListRequests is ordered newest first.
	ListRequests(ctx context.Context, f Filter) ([]Request, error)
	// TransitionRequest applies t only if the request is still in t.From,
	// returning ErrInvalidTransition otherwise.
	TransitionRequest(ctx context.Context, t Transition) error
	InsertGrants(ctx context.Context, grants []Grant) error
	// ListGrants is ordered by granted_at, then id.
	ListGrants(ctx context.Context, requestID string) ([]Grant, error)
	DeleteGrantsByRequest(ctx context.Context, requestID string) (int64, error)
	DeleteGrantsByDocument(ctx context.Context, documentID string) (int64, error)
	// AccessGrants returns grants on documentID under requests made by orgID.
	AccessGrants(ctx context.Context, orgID, documentID string) ([]AccessGrant, error)
}

// Repository is a Store that can run a unit of work atomically. fn sees a
// Store bound to the unit; returning an error discards everything it did.
type Repository interface {
	Store
	RunInTx(ctx context.Context, fn func(Store) error) error
}
