package catalog

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"kyc-backend/internal/shared/storage/db"
)

func newMockRepo(t *testing.T, dialect db.Dialect) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &PGRepo{DB: conn, Dialect: dialect}, mock
}

func TestPGRepoCreateOrganizationDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t, db.Postgres)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO organizations").
		WithArgs("org-1", "Bank", "banking", now).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "organizations_name_key"})

	err := repo.CreateOrganization(context.Background(), Organization{ID: "org-1", Name: "Bank", Sector: "banking", CreatedAt: now})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetDocumentTypeNotFound(t *testing.T) {
	repo, mock := newMockRepo(t, db.SQLite)

	mock.ExpectQuery(`FROM document_types WHERE id = \?`).
		WithArgs("dt-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetDocumentType(context.Background(), "dt-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoReplaceRequirementsInTx(t *testing.T) {
	repo, mock := newMockRepo(t, db.Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM organizations").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("DELETE FROM organization_requirements").WithArgs("org-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO organization_requirements").WithArgs("org-1", "dt-passport", true, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO organization_requirements").WithArgs("org-1", "dt-utility-bill", false, 90).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReplaceRequirements(context.Background(), "org-1", []Requirement{
		{DocumentTypeID: "dt-passport", Mandatory: true},
		{DocumentTypeID: "dt-utility-bill", Mandatory: false, ValidForDays: 90},
	})
	if err != nil {
		t.Fatalf("ReplaceRequirements: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoReplaceRequirementsRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t, db.Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM organizations").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("DELETE FROM organization_requirements").WithArgs("org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO organization_requirements").
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	err := repo.ReplaceRequirements(context.Background(), "org-1", []Requirement{{DocumentTypeID: "dt-bad"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListRequirements(t *testing.T) {
	repo, mock := newMockRepo(t, db.Postgres)

	rows := sqlmock.NewRows([]string{"organization_id", "document_type_id", "name", "mandatory", "valid_for_days"}).
		AddRow("org-1", "dt-national-id", "National ID", true, 0).
		AddRow("org-1", "dt-utility-bill", "Utility Bill", false, 90)
	mock.ExpectQuery("FROM organization_requirements r").WithArgs("org-1").WillReturnRows(rows)

	got, err := repo.ListRequirements(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("ListRequirements: %v", err)
	}
	if len(got) != 2 || got[1].DocumentType != "Utility Bill" || got[1].Mandatory {
		t.Fatalf("unexpected requirements: %+v", got)
	}
}
