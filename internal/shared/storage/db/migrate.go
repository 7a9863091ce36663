package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// RunMigrations applies embedded SQL migrations via goose. If database is nil, it's a no-op.
func RunMigrations(ctx context.Context, database *sql.DB, dialect Dialect) error {
	if database == nil {
		return nil
	}
	dir, err := prepareGoose(dialect)
	if err != nil {
		return err
	}
	return goose.UpContext(ctx, database, dir)
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(ctx context.Context, database *sql.DB, dialect Dialect) error {
	dir, err := prepareGoose(dialect)
	if err != nil {
		return err
	}
	return goose.DownContext(ctx, database, dir)
}

// MigrationVersion reports the current schema version.
func MigrationVersion(ctx context.Context, database *sql.DB, dialect Dialect) (int64, error) {
	if _, err := prepareGoose(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, database)
}

func prepareGoose(dialect Dialect) (string, error) {
	goose.SetBaseFS(migrationFiles)
	switch dialect {
	case SQLite:
		if err := goose.SetDialect("sqlite3"); err != nil {
			return "", err
		}
		return "migrations/sqlite", nil
	case Postgres, "":
		if err := goose.SetDialect("postgres"); err != nil {
			return "", err
		}
		return "migrations/postgres", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}
