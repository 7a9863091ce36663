//go:build integration

package disclosure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"kyc-backend/internal/shared/storage/db"
)

func newPostgresStore(t *testing.T) *PGStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("kyc"),
		tcpostgres.WithUsername("kyc"),
		tcpostgres.WithPassword("kyc"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	conn, dialect, err := db.Connect(ctx, dsn, db.DefaultServerOptions())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.RunMigrations(ctx, conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seed := []string{
		`INSERT INTO organizations (id, name, created_at) VALUES ('org-1', 'First Bank', now())`,
		`INSERT INTO documents (id, owner_id, document_type_id, file_name, mime_type, size_bytes, storage_key, uploaded_at, expires_at, fields, extraction_status, extraction_method)
		 VALUES ('doc-1', 'owner-1', 'dt-national-id', 'id.pdf', 'application/pdf', 10, 'k', now(), now() + interval '1 year', '{}', 'succeeded', 'text')`,
	}
	for _, q := range seed {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return NewPGStore(conn, dialect)
}

func TestPostgresConcurrentApprovalHasOneWinner(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if err := store.CreateRequest(ctx, Request{ID: "req-1", OrganizationID: "org-1", OwnerID: "owner-1", Purpose: "kyc", Status: StatusPending, RequestedAt: now}); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := store.CreateRequest(ctx, Request{ID: "req-2", OrganizationID: "org-1", OwnerID: "owner-1", Purpose: "kyc", Status: StatusPending, RequestedAt: now}); err != ErrDuplicatePending {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.RunInTx(ctx, func(st Store) error {
				if err := st.TransitionRequest(ctx, Transition{RequestID: "req-1", From: StatusPending, To: StatusApproved, At: now, Actor: "owner-1"}); err != nil {
					return err
				}
				return st.InsertGrants(ctx, []Grant{{ID: "g-" + string(rune('a'+i)), RequestID: "req-1", DocumentID: "doc-1", Level: LevelView, GrantedAt: now}})
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one approval, got %d", wins)
	}
	grants, err := store.ListGrants(ctx, "req-1")
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("expected one grant, got %d", len(grants))
	}
}

func TestPostgresRevokeDeletesGrantsAtomically(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if err := store.CreateRequest(ctx, Request{ID: "req-1", OrganizationID: "org-1", OwnerID: "owner-1", Purpose: "kyc", Status: StatusPending, RequestedAt: now}); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	err := store.RunInTx(ctx, func(st Store) error {
		if err := st.TransitionRequest(ctx, Transition{RequestID: "req-1", From: StatusPending, To: StatusApproved, At: now, Actor: "owner-1"}); err != nil {
			return err
		}
		return st.InsertGrants(ctx, []Grant{{ID: "g-1", RequestID: "req-1", DocumentID: "doc-1", Level: LevelDownload, GrantedAt: now}})
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	err = store.RunInTx(ctx, func(st Store) error {
		if err := st.TransitionRequest(ctx, Transition{RequestID: "req-1", From: StatusApproved, To: StatusRevoked, At: now, Actor: "owner-1"}); err != nil {
			return err
		}
		_, err := st.DeleteGrantsByRequest(ctx, "req-1")
		return err
	})
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}

	grants, err := store.AccessGrants(ctx, "org-1", "doc-1")
	if err != nil {
		t.Fatalf("AccessGrants: %v", err)
	}
	if len(grants) != 0 {
		t.Fatalf("expected grants removed, got %+v", grants)
	}
	req, err := store.GetRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if req.Status != StatusRevoked || req.RevokedAt == nil {
		t.Fatalf("unexpected request %+v", req)
	}
}
