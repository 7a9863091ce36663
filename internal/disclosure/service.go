// Package disclosure implements the disclosure request lifecycle, the
// permission grants it creates, the access gateway that enforces them and the
// compliance view derived from them.
package disclosure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"kyc-backend/internal/audit"
	"kyc-backend/internal/catalog"
	"kyc-backend/internal/documents"
	"kyc-backend/internal/shared/apperr"
	"kyc-backend/internal/shared/auth"
	"kyc-backend/internal/shared/metrics"
)

// OrganizationLookup resolves organizations and what they require.
type OrganizationLookup interface {
	Organization(ctx context.Context, id string) (catalog.Organization, error)
	Requirements(ctx context.Context, orgID string) ([]catalog.Requirement, error)
}

// DocumentLookup loads documents without an ownership check.
type DocumentLookup interface {
	Find(ctx context.Context, id string) (documents.Document, error)
}

type Service struct {
	Store  Repository
	Orgs   OrganizationLookup
	Docs   DocumentLookup
	Audit  audit.Recorder
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

func NewService(store Repository, orgs OrganizationLookup, docs DocumentLookup, rec audit.Recorder, logger *slog.Logger) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:  store,
		Orgs:   orgs,
		Docs:   docs,
		Audit:  rec,
		Logger: logger,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

// Create opens a pending request from orgID to ownerID.
func (s *Service) Create(ctx context.Context, orgID, ownerID, purpose string, validUntil *time.Time) (Request, error) {
	ownerID = strings.TrimSpace(ownerID)
	purpose = strings.TrimSpace(purpose)
	if ownerID == "" {
		return Request{}, apperr.Validation("ownerId is required")
	}
	if purpose == "" {
		return Request{}, apperr.Validation("purpose is required")
	}
	now := s.Now().UTC()
	if validUntil != nil && !validUntil.After(now) {
		return Request{}, apperr.Validation("validUntil must be in the future")
	}
	if _, err := s.Orgs.Organization(ctx, orgID); err != nil {
		return Request{}, err
	}

	req := Request{
		ID:             s.NewID(),
		OrganizationID: orgID,
		OwnerID:        ownerID,
		Purpose:        purpose,
		Status:         StatusPending,
		RequestedAt:    now,
		ValidUntil:     validUntil,
	}
	if err := s.Store.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, ErrDuplicatePending) {
			return Request{}, apperr.Duplicate("a pending request for this owner already exists")
		}
		return Request{}, err
	}

	s.Audit.Record(ctx, audit.Event{
		ActorID:    orgID,
		Action:     audit.ActionDisclosureRequested,
		TargetType: "disclosure",
		TargetID:   req.ID,
		Detail:     purpose,
		Outcome:    string(StatusPending),
	})
	return req, nil
}

// Decide approves or rejects a pending request. An approval writes the status
// change and every grant in one unit of work; any error leaves both untouched.
func (s *Service) Decide(ctx context.Context, ownerID, requestID string, in DecideInput) (Request, []Grant, error) {
	var to Status
	switch in.Decision {
	case DecisionApprove:
		to = StatusApproved
		if in.Grants == nil {
			return Request{}, nil, apperr.Validation("grants are required to approve; send an empty list to approve without documents")
		}
	case DecisionReject:
		to = StatusRejected
		if len(in.Grants) > 0 {
			return Request{}, nil, apperr.Validation("a rejection cannot carry grants")
		}
	default:
		return Request{}, nil, apperr.Validation(fmt.Sprintf("unknown decision %q", in.Decision))
	}

	now := s.Now().UTC()
	grants, err := s.buildGrants(ctx, ownerID, requestID, in.Grants, now)
	if err != nil {
		return Request{}, nil, err
	}

	var decided Request
	err = s.Store.RunInTx(ctx, func(st Store) error {
		req, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID != ownerID {
			return apperr.Forbidden("request belongs to another owner")
		}
		if !CanTransition(req.Status, to) {
			return ErrInvalidTransition
		}
		if err := st.TransitionRequest(ctx, Transition{RequestID: requestID, From: StatusPending, To: to, At: now, Actor: ownerID}); err != nil {
			return err
		}
		if err := st.InsertGrants(ctx, grants); err != nil {
			return err
		}
		decided, err = st.GetRequest(ctx, requestID)
		return err
	})
	if err != nil {
		metrics.DisclosureTransitionsTotal.WithLabelValues(string(to), "rejected").Inc()
		return Request{}, nil, s.translate(err)
	}
	metrics.DisclosureTransitionsTotal.WithLabelValues(string(to), "ok").Inc()

	action := audit.ActionDisclosureApproved
	if to == StatusRejected {
		action = audit.ActionDisclosureRejected
	}
	s.Audit.Record(ctx, audit.Event{
		ActorID:    ownerID,
		Action:     action,
		TargetType: "disclosure",
		TargetID:   requestID,
		Detail:     fmt.Sprintf("%d grants", len(grants)),
		Outcome:    string(to),
	})
	return decided, grants, nil
}

// buildGrants validates the owner's selection before anything is written.
func (s *Service) buildGrants(ctx context.Context, ownerID, requestID string, inputs []GrantInput, now time.Time) ([]Grant, error) {
	grants := make([]Grant, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		docID := strings.TrimSpace(in.DocumentID)
		if docID == "" {
			return nil, apperr.Validation(fmt.Sprintf("grants[%d]: documentId is required", i))
		}
		if seen[docID] {
			return nil, apperr.Validation(fmt.Sprintf("grants[%d]: document %s selected twice", i, docID))
		}
		seen[docID] = true

		level := in.Level
		if level == "" {
			level = LevelView
		}
		if !ValidLevel(level) {
			return nil, apperr.Validation(fmt.Sprintf("grants[%d]: unknown access level %q", i, level))
		}

		doc, err := s.Docs.Find(ctx, docID)
		if err != nil {
			return nil, err
		}
		if doc.OwnerID != ownerID {
			return nil, apperr.Forbidden(fmt.Sprintf("grants[%d]: document belongs to another owner", i))
		}
		grants = append(grants, Grant{
			ID:         s.NewID(),
			RequestID:  requestID,
			DocumentID: docID,
			Level:      level,
			GrantedAt:  now,
		})
	}
	return grants, nil
}

// Revoke withdraws an approved request and deletes all of its grants in one
// unit of work. Foreign and non-approved requests are refused.
func (s *Service) Revoke(ctx context.Context, ownerID, requestID string) (Request, error) {
	now := s.Now().UTC()
	var (
		revoked Request
		removed int64
	)
	err := s.Store.RunInTx(ctx, func(st Store) error {
		req, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID != ownerID {
			return apperr.Forbidden("request belongs to another owner")
		}
		if !CanTransition(req.Status, StatusRevoked) {
			return notRevocable(req.Status)
		}
		if err := st.TransitionRequest(ctx, Transition{RequestID: requestID, From: StatusApproved, To: StatusRevoked, At: now, Actor: ownerID}); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				return notRevocable(req.Status)
			}
			return err
		}
		if removed, err = st.DeleteGrantsByRequest(ctx, requestID); err != nil {
			return err
		}
		revoked, err = st.GetRequest(ctx, requestID)
		return err
	})
	if err != nil {
		metrics.DisclosureTransitionsTotal.WithLabelValues(string(StatusRevoked), "rejected").Inc()
		return Request{}, s.translate(err)
	}
	metrics.DisclosureTransitionsTotal.WithLabelValues(string(StatusRevoked), "ok").Inc()

	s.Audit.Record(ctx, audit.Event{
		ActorID:    ownerID,
		Action:     audit.ActionDisclosureRevoked,
		TargetType: "disclosure",
		TargetID:   requestID,
		Detail:     fmt.Sprintf("%d grants removed", removed),
		Outcome:    string(StatusRevoked),
	})
	return revoked, nil
}

// notRevocable is an authorization failure that still matches ErrInvalidTransition.
func notRevocable(status Status) error {
	return apperr.Wrap(apperr.ErrInvalidTransition, apperr.KindAuthorization,
		fmt.Sprintf("only approved requests can be revoked (status is %s)", status))
}

func (s *Service) translate(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("disclosure request not found")
	case errors.Is(err, ErrInvalidTransition):
		return apperr.Transition("request is no longer pending")
	case errors.Is(err, ErrDuplicateGrant):
		return apperr.Validation("document selected twice")
	}
	return err
}

// Get returns a request to its owner, its requesting organization, or an admin.
func (s *Service) Get(ctx context.Context, viewer Viewer, id string) (Request, error) {
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, s.translate(err)
	}
	if !canRead(viewer, req) {
		return Request{}, apperr.Forbidden("not a party to this request")
	}
	return req, nil
}

func canRead(v Viewer, req Request) bool {
	switch v.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleIndividual:
		return req.OwnerID == v.ID
	case auth.RoleOrganization:
		return req.OrganizationID == v.ID
	}
	return false
}

// List returns the viewer's requests, optionally filtered by status.
func (s *Service) List(ctx context.Context, viewer Viewer, status Status) ([]Request, error) {
	if status != "" && !ValidStatus(status) {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", status))
	}
	f := Filter{Status: status}
	switch viewer.Role {
	case auth.RoleIndividual:
		f.OwnerID = viewer.ID
	case auth.RoleOrganization:
		f.OrganizationID = viewer.ID
	case auth.RoleAdmin:
	default:
		return nil, apperr.Forbidden("role cannot list requests")
	}
	return s.Store.ListRequests(ctx, f)
}

// Grants lists the grants of a request the viewer may read.
func (s *Service) Grants(ctx context.Context, viewer Viewer, requestID string) ([]Grant, error) {
	if _, err := s.Get(ctx, viewer, requestID); err != nil {
		return nil, err
	}
	return s.Store.ListGrants(ctx, requestID)
}

// PurgeDocument deletes every grant on a document, whatever request it belongs to.
func (s *Service) PurgeDocument(ctx context.Context, documentID string) error {
	n, err := s.Store.DeleteGrantsByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if n > 0 {
		s.Logger.Info("grants purged for deleted document", "document_id", documentID, "grants", n)
	}
	return nil
}
