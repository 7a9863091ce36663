package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"kyc-backend/internal/shared/storage/db"
)

func TestPGSinkWrite(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	at := time.Now().UTC()
	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("e1", "owner-1", ActionDocumentDeleted, "document", "doc-1", "", "", "req-9", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink := &PGSink{DB: conn, Dialect: db.Postgres}
	err = sink.Write(context.Background(), Event{
		ID: "e1", ActorID: "owner-1", Action: ActionDocumentDeleted,
		TargetType: "document", TargetID: "doc-1", RequestID: "req-9", OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGSinkListSQLitePlaceholders(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	at := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "actor_id", "action", "target_type", "target_id", "detail", "outcome", "request_id", "occurred_at"}).
		AddRow("e2", "org-1", ActionAccessDenied, "document", "doc-1", "no_grant", "denied", "", at)
	mock.ExpectQuery(`LIMIT \?`).WithArgs(5).WillReturnRows(rows)

	sink := &PGSink{DB: conn, Dialect: db.SQLite}
	got, err := sink.List(context.Background(), 5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Detail != "no_grant" || got[0].Outcome != "denied" {
		t.Fatalf("unexpected events: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
