package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/topupstore-backend/pkg/config"
	"github.com/angelmondragon/topupstore-backend/pkg/db"
	"go.uber.org/multierr"
)

func TestUsersMigrationContainsDeliveryColumns(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_users.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no users migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS users",
		"email TEXT NOT NULL UNIQUE",
		"saved_email TEXT",
		"saved_messaging_handle TEXT",
		"DROP TABLE IF EXISTS users",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("expected shipped migrations to validate: %v", err)
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}

	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_no_down.sql"), []byte("-- +goose Up\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected missing down section error")
	}

	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_reversed.sql"), []byte("-- +goose Down\n-- +goose Up\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := ValidateDir(dir)
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected both problems reported, got %d: %v", got, err)
	}
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := New(nil, DialectSQLite, "migrations"); err == nil {
		t.Fatal("expected error without db")
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Saved Contacts!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_saved_contacts.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected error for empty sanitized name")
	}
}

func TestRunUpAppliesUsersTableOnSQLite(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{DSN: filepath.Join(t.TempDir(), "migrate.db")}, true, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()

	sqlDB, err := client.SQL()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	m, err := New(sqlDB, DialectFor(true), "migrations")
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	if err := m.Exec(ctx, "up"); err != nil {
		t.Fatalf("run up: %v", err)
	}

	if _, err := sqlDB.ExecContext(ctx, `INSERT INTO users (id, email) VALUES ('8f9b5a8e-0000-4000-8000-000000000001', 'a@b.io')`); err != nil {
		t.Fatalf("insert after migration: %v", err)
	}
	if _, err := sqlDB.ExecContext(ctx, `INSERT INTO users (id, email) VALUES ('8f9b5a8e-0000-4000-8000-000000000002', 'a@b.io')`); err == nil {
		t.Fatal("expected unique email violation")
	}
}

func TestDialectFor(t *testing.T) {
	if DialectFor(false) != DialectPostgres || DialectFor(true) != DialectSQLite {
		t.Fatal("unexpected dialect mapping")
	}
}

func TestCreateSQLMigrationRefusesExistingVersion(t *testing.T) {
	dir := t.TempDir()
	fixed := func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }
	path, err := createSQLMigration(dir, "checkout drafts", fixed)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260302093000_checkout_drafts.sql" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}
	if _, err := createSQLMigration(dir, "checkout drafts", fixed); err == nil {
		t.Fatal("expected duplicate migration error")
	}
}
