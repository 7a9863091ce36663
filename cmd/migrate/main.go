// Command migrate applies or rolls back the embedded schema migrations for
// the database named by DATABASE_URL.
//
//	go run ./cmd/migrate [up|down|version]
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kyc-backend/internal/bootstrap"
	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/storage/db"
	"kyc-backend/internal/shared/telemetry"
)

const migrateTimeout = 5 * time.Minute

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.Load()
	telemetry.Configure(nil, cfg.LogLevel)

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	step, ok := steps[command]
	if !ok {
		telemetry.Error("migrate.unknown_command", map[string]any{"command": command, "want": "up, down or version"})
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()

	sqlDB, dialect, err := db.Connect(ctx, cfg.DatabaseURL, bootstrap.DBOptions(cfg, db.DefaultMigrateOptions()))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		return 1
	}
	defer sqlDB.Close()

	if err := step(ctx, sqlDB, dialect); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "dialect": string(dialect), "error": err})
		return 1
	}
	version, err := db.MigrationVersion(ctx, sqlDB, dialect)
	if err != nil {
		telemetry.Error("migrate.version_failed", map[string]any{"error": err})
		return 1
	}
	telemetry.Info("migrate.done", map[string]any{"command": command, "dialect": string(dialect), "version": version})
	return 0
}

var steps = map[string]func(context.Context, *sql.DB, db.Dialect) error{
	"up":   db.RunMigrations,
	"down": db.RollbackMigration,
	// version only reports, which run does after every step.
	"version": func(context.Context, *sql.DB, db.Dialect) error { return nil },
}
