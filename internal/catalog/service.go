package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kyc-backend/internal/audit"
	"kyc-backend/internal/shared/apperr"
)

// Service exposes the document type catalog, organizations and requirements.
type Service struct {
	Repo  Repo
	Audit audit.Recorder
	Now   func() time.Time
	NewID func() string
}

func NewService(repo Repo, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		Repo:  repo,
		Audit: rec,
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

func (s *Service) DocumentTypes(ctx context.Context) ([]DocumentType, error) {
	return s.Repo.ListDocumentTypes(ctx)
}

func (s *Service) DocumentType(ctx context.Context, id string) (DocumentType, error) {
	t, err := s.Repo.GetDocumentType(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return DocumentType{}, apperr.NotFound("document type not found")
	}
	return t, err
}

// RegisterOrganization creates an organization. Names are unique ignoring case.
func (s *Service) RegisterOrganization(ctx context.Context, actorID string, org Organization) (Organization, error) {
	org.Name = strings.TrimSpace(org.Name)
	org.Sector = strings.TrimSpace(org.Sector)
	org.ID = strings.TrimSpace(org.ID)
	if org.Name == "" {
		return Organization{}, apperr.Validation("name is required")
	}
	if org.ID == "" {
		org.ID = s.NewID()
	}
	org.CreatedAt = s.Now().UTC()

	if err := s.Repo.CreateOrganization(ctx, org); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Organization{}, apperr.Duplicate("organization already exists")
		}
		return Organization{}, err
	}
	s.Audit.Record(ctx, audit.Event{
		ActorID:    actorID,
		Action:     audit.ActionOrganizationCreated,
		TargetType: "organization",
		TargetID:   org.ID,
		Detail:     org.Name,
	})
	return org, nil
}

func (s *Service) Organization(ctx context.Context, id string) (Organization, error) {
	org, err := s.Repo.GetOrganization(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Organization{}, apperr.NotFound("organization not found")
	}
	return org, err
}

func (s *Service) Organizations(ctx context.Context) ([]Organization, error) {
	return s.Repo.ListOrganizations(ctx)
}

// Requirements lists what the organization requires.
func (s *Service) Requirements(ctx context.Context, orgID string) ([]Requirement, error) {
	if _, err := s.Organization(ctx, orgID); err != nil {
		return nil, err
	}
	return s.Repo.ListRequirements(ctx, orgID)
}

// AllRequirements lists the requirements of every organization, ordered by
// organization name. Organizations without requirements are left out.
func (s *Service) AllRequirements(ctx context.Context) ([]OrganizationRequirements, error) {
	orgs, err := s.Repo.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]OrganizationRequirements, 0, len(orgs))
	for _, org := range orgs {
		reqs, err := s.Repo.ListRequirements(ctx, org.ID)
		if err != nil {
			return nil, err
		}
		if len(reqs) == 0 {
			continue
		}
		out = append(out, OrganizationRequirements{Organization: org, Requirements: reqs})
	}
	return out, nil
}

// UpsertRequirements replaces the organization's requirement set. Every
// referenced type must exist; nothing is written otherwise.
func (s *Service) UpsertRequirements(ctx context.Context, orgID string, reqs []Requirement) ([]Requirement, error) {
	if _, err := s.Organization(ctx, orgID); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(reqs))
	clean := make([]Requirement, 0, len(reqs))
	for i, req := range reqs {
		req.DocumentTypeID = strings.TrimSpace(req.DocumentTypeID)
		if req.DocumentTypeID == "" {
			return nil, apperr.Validation(fmt.Sprintf("requirements[%d]: documentTypeId is required", i))
		}
		if seen[req.DocumentTypeID] {
			return nil, apperr.Validation(fmt.Sprintf("requirements[%d]: duplicate document type %s", i, req.DocumentTypeID))
		}
		if req.ValidForDays < 0 {
			return nil, apperr.Validation(fmt.Sprintf("requirements[%d]: validForDays must not be negative", i))
		}
		if _, err := s.Repo.GetDocumentType(ctx, req.DocumentTypeID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, apperr.Validation(fmt.Sprintf("requirements[%d]: unknown document type %s", i, req.DocumentTypeID))
			}
			return nil, err
		}
		seen[req.DocumentTypeID] = true
		req.OrganizationID = orgID
		clean = append(clean, req)
	}

	if err := s.Repo.ReplaceRequirements(ctx, orgID, clean); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("organization not found")
		}
		return nil, err
	}
	s.Audit.Record(ctx, audit.Event{
		ActorID:    orgID,
		Action:     audit.ActionRequirementsUpdated,
		TargetType: "organization",
		TargetID:   orgID,
		Detail:     fmt.Sprintf("%d requirements", len(clean)),
	})
	return s.Repo.ListRequirements(ctx, orgID)
}
