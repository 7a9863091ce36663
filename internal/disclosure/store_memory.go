package disclosure

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps requests and grants in process. A unit of work runs on a
// private copy under the store-wide lock and is swapped in only on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	requests map[string]Request
	grants   map[string]Grant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		requests: make(map[string]Request),
		grants:   make(map[string]Grant),
	}}
}

func (s *memState) clone() *memState {
	out := &memState{
		requests: make(map[string]Request, len(s.requests)),
		grants:   make(map[string]Grant, len(s.grants)),
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.grants {
		out.grants[k] = v
	}
	return out
}

func (m *MemoryStore) RunInTx(ctx context.Context, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(memTx{st: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) read(fn func(memTx)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(memTx{st: m.state})
}

func (m *MemoryStore) write(fn func(memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(memTx{st: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) CreateRequest(ctx context.Context, r Request) error {
	return m.write(func(tx memTx) error { return tx.CreateRequest(ctx, r) })
}

func (m *MemoryStore) GetRequest(ctx context.Context, id string) (r Request, err error) {
	m.read(func(tx memTx) { r, err = tx.GetRequest(ctx, id) })
	return
}

func (m *MemoryStore) ListRequests(ctx context.Context, f Filter) (out []Request, err error) {
	m.read(func(tx memTx) { out, err = tx.ListRequests(ctx, f) })
	return
}

func (m *MemoryStore) TransitionRequest(ctx context.Context, t Transition) error {
	return m.write(func(tx memTx) error { return tx.TransitionRequest(ctx, t) })
}

func (m *MemoryStore) InsertGrants(ctx context.Context, grants []Grant) error {
	return m.write(func(tx memTx) error { return tx.InsertGrants(ctx, grants) })
}

func (m *MemoryStore) ListGrants(ctx context.Context, requestID string) (out []Grant, err error) {
	m.read(func(tx memTx) { out, err = tx.ListGrants(ctx, requestID) })
	return
}

func (m *MemoryStore) DeleteGrantsByRequest(ctx context.Context, requestID string) (n int64, err error) {
	err = m.write(func(tx memTx) error {
		var e error
		n, e = tx.DeleteGrantsByRequest(ctx, requestID)
		return e
	})
	return
}

func (m *MemoryStore) DeleteGrantsByDocument(ctx context.Context, documentID string) (n int64, err error) {
	err = m.write(func(tx memTx) error {
		var e error
		n, e = tx.DeleteGrantsByDocument(ctx, documentID)
		return e
	})
	return
}

func (m *MemoryStore) AccessGrants(ctx context.Context, orgID, documentID string) (out []AccessGrant, err error) {
	m.read(func(tx memTx) { out, err = tx.AccessGrants(ctx, orgID, documentID) })
	return
}

// memTx implements Store over a state the caller already holds the lock for.
type memTx struct {
	st *memState
}

func (tx memTx) CreateRequest(ctx context.Context, r Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Status == StatusPending {
		for _, existing := range tx.st.requests {
			if existing.Status == StatusPending && existing.OrganizationID == r.OrganizationID && existing.OwnerID == r.OwnerID {
				return ErrDuplicatePending
			}
		}
	}
	tx.st.requests[r.ID] = r
	return nil
}

func (tx memTx) GetRequest(ctx context.Context, id string) (Request, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, err
	}
	r, ok := tx.st.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return r, nil
}

func (tx memTx) ListRequests(ctx context.Context, f Filter) ([]Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Request
	for _, r := range tx.st.requests {
		if f.OwnerID != "" && r.OwnerID != f.OwnerID {
			continue
		}
		if f.OrganizationID != "" && r.OrganizationID != f.OrganizationID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (tx memTx) TransitionRequest(ctx context.Context, t Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, ok := tx.st.requests[t.RequestID]
	if !ok {
		return ErrNotFound
	}
	if r.Status != t.From {
		return ErrInvalidTransition
	}
	at := t.At
	r.Status = t.To
	if t.To == StatusRevoked {
		r.RevokedAt = &at
	} else {
		r.DecidedAt = &at
		r.DecidedBy = t.Actor
	}
	tx.st.requests[r.ID] = r
	return nil
}

func (tx memTx) InsertGrants(ctx context.Context, grants []Grant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, g := range grants {
		for _, existing := range tx.st.grants {
			if existing.RequestID == g.RequestID && existing.DocumentID == g.DocumentID {
				return ErrDuplicateGrant
			}
		}
		tx.st.grants[g.ID] = g
	}
	return nil
}

func (tx memTx) ListGrants(ctx context.Context, requestID string) ([]Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Grant
	for _, g := range tx.st.grants {
		if g.RequestID == requestID {
			out = append(out, g)
		}
	}
	sortGrants(out)
	return out, nil
}

func (tx memTx) DeleteGrantsByRequest(ctx context.Context, requestID string) (int64, error) {
	return tx.deleteWhere(ctx, func(g Grant) bool { return g.RequestID == requestID })
}

func (tx memTx) DeleteGrantsByDocument(ctx context.Context, documentID string) (int64, error) {
	return tx.deleteWhere(ctx, func(g Grant) bool { return g.DocumentID == documentID })
}

func (tx memTx) deleteWhere(ctx context.Context, match func(Grant) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	for id, g := range tx.st.grants {
		if match(g) {
			delete(tx.st.grants, id)
			n++
		}
	}
	return n, nil
}

func (tx memTx) AccessGrants(ctx context.Context, orgID, documentID string) ([]AccessGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []AccessGrant
	for _, g := range tx.st.grants {
		if g.DocumentID != documentID {
			continue
		}
		r, ok := tx.st.requests[g.RequestID]
		if !ok || r.OrganizationID != orgID {
			continue
		}
		out = append(out, AccessGrant{
			Grant:          g,
			OrganizationID: r.OrganizationID,
			OwnerID:        r.OwnerID,
			Status:         r.Status,
			ValidUntil:     r.ValidUntil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return grantLess(out[i].Grant, out[j].Grant) })
	return out, nil
}

func sortGrants(grants []Grant) {
	sort.Slice(grants, func(i, j int) bool { return grantLess(grants[i], grants[j]) })
}

func grantLess(a, b Grant) bool {
	if !a.GrantedAt.Equal(b.GrantedAt) {
		return a.GrantedAt.Before(b.GrantedAt)
	}
	return a.ID < b.ID
}
