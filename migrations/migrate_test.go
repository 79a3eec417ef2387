package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return count == 1
}

func TestRunEmbedded(t *testing.T) {
	db := openMemoryDB(t)

	if err := RunEmbedded(db, zerolog.Nop()); err != nil {
		t.Fatalf("RunEmbedded failed: %v", err)
	}
	if !tableExists(t, db, "response_steps") {
		t.Fatal("Expected response_steps table")
	}

	// A second run is a no-op.
	if err := RunEmbedded(db, zerolog.Nop()); err != nil {
		t.Fatalf("Second RunEmbedded failed: %v", err)
	}
}

func TestRunMigrationsFromDirectory(t *testing.T) {
	db := openMemoryDB(t)

	if err := RunMigrations(db, "sql", zerolog.Nop()); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if !tableExists(t, db, "response_steps") {
		t.Fatal("Expected response_steps table")
	}
}

func TestRunMigrationsMissingDirectory(t *testing.T) {
	db := openMemoryDB(t)

	if err := RunMigrations(db, t.TempDir()+"/missing", zerolog.Nop()); err == nil {
		t.Fatal("Expected error for missing migrations directory")
	}
}
