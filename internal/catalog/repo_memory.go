package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory Repo seeded with the default document types.
type MemoryRepo struct {
	mu    sync.RWMutex
	types map[string]DocumentType
	orgs  map[string]Organization
	reqs  map[string][]Requirement // orgID -> requirements
}

func NewMemoryRepo() *MemoryRepo {
	r := &MemoryRepo{
		types: make(map[string]DocumentType),
		orgs:  make(map[string]Organization),
		reqs:  make(map[string][]Requirement),
	}
	for _, t := range DefaultDocumentTypes() {
		r.types[t.ID] = t
	}
	return r
}

func (r *MemoryRepo) ListDocumentTypes(ctx context.Context) ([]DocumentType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DocumentType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) GetDocumentType(ctx context.Context, id string) (DocumentType, error) {
	if err := ctx.Err(); err != nil {
		return DocumentType{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	if !ok {
		return DocumentType{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) CreateOrganization(ctx context.Context, org Organization) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orgs[org.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.orgs {
		if strings.EqualFold(existing.Name, org.Name) {
			return ErrDuplicate
		}
	}
	r.orgs[org.ID] = org
	return nil
}

func (r *MemoryRepo) GetOrganization(ctx context.Context, id string) (Organization, error) {
	if err := ctx.Err(); err != nil {
		return Organization{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	org, ok := r.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (r *MemoryRepo) ListOrganizations(ctx context.Context) ([]Organization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Organization, 0, len(r.orgs))
	for _, org := range r.orgs {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) ReplaceRequirements(ctx context.Context, orgID string, reqs []Requirement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orgs[orgID]; !ok {
		return ErrNotFound
	}
	for _, req := range reqs {
		if _, ok := r.types[req.DocumentTypeID]; !ok {
			return ErrNotFound
		}
	}
	r.reqs[orgID] = append([]Requirement(nil), reqs...)
	return nil
}

func (r *MemoryRepo) ListRequirements(ctx context.Context, orgID string) ([]Requirement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.reqs[orgID]
	out := make([]Requirement, 0, len(src))
	for _, req := range src {
		req.DocumentType = r.types[req.DocumentTypeID].Name
		out = append(out, req)
	}
	sortRequirements(out)
	return out, nil
}

func sortRequirements(reqs []Requirement) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].DocumentType != reqs[j].DocumentType {
			return reqs[i].DocumentType < reqs[j].DocumentType
		}
		return reqs[i].DocumentTypeID < reqs[j].DocumentTypeID
	})
}
