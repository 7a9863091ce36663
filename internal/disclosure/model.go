package disclosure

import "time"

// Status is the lifecycle state of a disclosure request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
)

// transitions is the whole legal graph; anything missing is rejected.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusRevoked},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusRevoked:
		return true
	}
	return false
}

// AccessLevel is the ceiling of operations a grant permits.
type AccessLevel string

const (
	LevelView         AccessLevel = "view"
	LevelDownload     AccessLevel = "download"
	LevelViewMetadata AccessLevel = "view-metadata"
)

// Operation is what an organization asks to do with a document.
type Operation string

const (
	OpView         Operation = "view"
	OpDownload     Operation = "download"
	OpViewMetadata Operation = "view-metadata"
)

func ValidLevel(l AccessLevel) bool {
	switch l {
	case LevelView, LevelDownload, LevelViewMetadata:
		return true
	}
	return false
}

func ValidOperation(op Operation) bool {
	switch op {
	case OpView, OpDownload, OpViewMetadata:
		return true
	}
	return false
}

// Permits reports whether a grant at level allows op. Download implies view;
// metadata is its own branch and is implied by nothing else.
func (l AccessLevel) Permits(op Operation) bool {
	switch op {
	case OpView:
		return l == LevelView || l == LevelDownload
	case OpDownload:
		return l == LevelDownload
	case OpViewMetadata:
		return l == LevelViewMetadata
	}
	return false
}

// Request is one organization's ask to see an owner's documents.
type Request struct {
	ID             string
	OrganizationID string
	OwnerID        string
	Purpose        string
	Status         Status
	RequestedAt    time.Time
	ValidUntil     *time.Time
	DecidedAt      *time.Time
	DecidedBy      string
	RevokedAt      *time.Time
}

// Active reports whether the request currently confers access.
func (r Request) Active(now time.Time) bool {
	if r.Status != StatusApproved {
		return false
	}
	return r.ValidUntil == nil || now.Before(*r.ValidUntil)
}

// Grant ties one approved request to one document at an access level.
type Grant struct {
	ID         string
	RequestID  string
	DocumentID string
	Level      AccessLevel
	GrantedAt  time.Time
}

// AccessGrant is a grant joined with the state of its request.
type AccessGrant struct {
	Grant
	OrganizationID string
	OwnerID        string
	Status         Status
	ValidUntil     *time.Time
}

func (g AccessGrant) Active(now time.Time) bool {
	return Request{Status: g.Status, ValidUntil: g.ValidUntil}.Active(now)
}

// Decision is the owner's answer to a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// GrantInput selects one document to disclose. Level defaults to view.
type GrantInput struct {
	DocumentID string
	Level      AccessLevel
}

// DecideInput carries a decision. For approvals Grants must be non-nil; an
// empty slice approves without disclosing anything.
type DecideInput struct {
	Decision Decision
	Grants   []GrantInput
}

// Filter narrows request listings. Empty fields match everything.
type Filter struct {
	OwnerID        string
	OrganizationID string
	Status         Status
}

// Transition is a conditional status change.
type Transition struct {
	RequestID string
	From      Status
	To        Status
	At        time.Time
	Actor     string
}

// Viewer is the principal reading a request.
type Viewer struct {
	ID   string
	Role string
}
