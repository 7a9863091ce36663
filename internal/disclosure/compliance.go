package disclosure

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"kyc-backend/internal/catalog"
	"kyc-backend/internal/shared/apperr"
)

// ComplianceItem says whether one requirement is covered by a request's grants.
type ComplianceItem struct {
	DocumentTypeID string       `json:"documentTypeId"`
	DocumentType   string       `json:"documentType"`
	Mandatory      bool         `json:"mandatory"`
	Submitted      bool         `json:"submitted"`
	DocumentID     *string      `json:"documentId"`
	AccessLevel    *AccessLevel `json:"accessLevel"`
}

// Evaluator derives compliance from requirements and the grants of each
// active request. Only what was granted under a request counts for it.
type Evaluator struct {
	Store  Store
	Orgs   OrganizationLookup
	Docs   DocumentLookup
	Logger *slog.Logger
	Now    func() time.Time
}

func NewEvaluator(store Store, orgs OrganizationLookup, docs DocumentLookup, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{Store: store, Orgs: orgs, Docs: docs, Logger: logger, Now: time.Now}
}

// Summary is the organization dashboard view of compliance.
type Summary struct {
	Requests map[string][]ComplianceItem
	// TotalDocumentsAccessed counts grants across the active requests.
	TotalDocumentsAccessed int
}

// Evaluate returns the compliance list for every active request of orgID, keyed by request id.
func (e *Evaluator) Evaluate(ctx context.Context, orgID string) (map[string][]ComplianceItem, error) {
	sum, err := e.Summarize(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return sum.Requests, nil
}

// Summarize evaluates every active request of orgID and counts the documents
// granted under them.
func (e *Evaluator) Summarize(ctx context.Context, orgID string) (Summary, error) {
	reqs, err := e.requirements(ctx, orgID)
	if err != nil {
		return Summary{}, err
	}
	requests, err := e.Store.ListRequests(ctx, Filter{OrganizationID: orgID, Status: StatusApproved})
	if err != nil {
		return Summary{}, err
	}

	now := e.Now()
	sum := Summary{Requests: make(map[string][]ComplianceItem, len(requests))}
	for _, r := range requests {
		if !r.Active(now) {
			continue
		}
		grants, err := e.Store.ListGrants(ctx, r.ID)
		if err != nil {
			return Summary{}, err
		}
		items, err := e.match(ctx, reqs, grants)
		if err != nil {
			return Summary{}, err
		}
		sum.Requests[r.ID] = items
		sum.TotalDocumentsAccessed += len(grants)
	}
	e.Logger.Debug("compliance evaluated",
		"organization_id", orgID,
		"requests", len(sum.Requests),
		"requirements", len(reqs),
		"documents_accessed", sum.TotalDocumentsAccessed,
	)
	return sum, nil
}

// EvaluateRequest evaluates one request. An inactive request covers nothing.
func (e *Evaluator) EvaluateRequest(ctx context.Context, r Request) ([]ComplianceItem, error) {
	reqs, err := e.requirements(ctx, r.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !r.Active(e.Now()) {
		return e.match(ctx, reqs, nil)
	}
	return e.evaluate(ctx, r.ID, reqs)
}

func (e *Evaluator) requirements(ctx context.Context, orgID string) ([]catalog.Requirement, error) {
	if _, err := e.Orgs.Organization(ctx, orgID); err != nil {
		return nil, err
	}
	reqs, err := e.Orgs.Requirements(ctx, orgID)
	if err != nil {
		return nil, err
	}
	sorted := append([]catalog.Requirement(nil), reqs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DocumentType != sorted[j].DocumentType {
			return sorted[i].DocumentType < sorted[j].DocumentType
		}
		return sorted[i].DocumentTypeID < sorted[j].DocumentTypeID
	})
	return sorted, nil
}

func (e *Evaluator) evaluate(ctx context.Context, requestID string, reqs []catalog.Requirement) ([]ComplianceItem, error) {
	grants, err := e.Store.ListGrants(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return e.match(ctx, reqs, grants)
}

// match assumes grants are ordered by granted_at, id; the first grant of a type wins.
func (e *Evaluator) match(ctx context.Context, reqs []catalog.Requirement, grants []Grant) ([]ComplianceItem, error) {
	type cover struct {
		docID string
		level AccessLevel
	}
	covered := make(map[string]cover)
	for _, g := range grants {
		doc, err := e.Docs.Find(ctx, g.DocumentID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if _, ok := covered[doc.DocumentTypeID]; !ok {
			covered[doc.DocumentTypeID] = cover{docID: g.DocumentID, level: g.Level}
		}
	}

	items := make([]ComplianceItem, 0, len(reqs))
	for _, req := range reqs {
		item := ComplianceItem{
			DocumentTypeID: req.DocumentTypeID,
			DocumentType:   req.DocumentType,
			Mandatory:      req.Mandatory,
		}
		if c, ok := covered[req.DocumentTypeID]; ok {
			docID, level := c.docID, c.level
			item.Submitted = true
			item.DocumentID = &docID
			item.AccessLevel = &level
		}
		items = append(items, item)
	}
	return items, nil
}
