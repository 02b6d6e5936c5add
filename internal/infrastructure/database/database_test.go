package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

// openTestDB opens a WAL database in a temp dir and closes it with the test.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_CreatesDirectoryAndFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "cache", "iotc.db")

	db, err := Open(context.Background(), Config{Path: dbPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != filePermissions {
		t.Errorf("file mode = %o, want %o", perm, filePermissions)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Error("Open() expected error for empty path")
	}
}

func TestOpen_JournalMode(t *testing.T) {
	tests := []struct {
		name string
		wal  bool
		want string
	}{
		{name: "wal", wal: true, want: "wal"},
		{name: "rollback journal", wal: false, want: "delete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Open(context.Background(), Config{
				Path:    filepath.Join(t.TempDir(), "j.db"),
				WALMode: tt.wal,
			})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer db.Close() //nolint:errcheck // Test cleanup

			got, err := db.JournalMode(context.Background())
			if err != nil {
				t.Fatalf("JournalMode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("JournalMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	db, err := Open(context.Background(), Config{
		Path:       filepath.Join(t.TempDir(), "m.db"),
		Migrations: testMigrations(),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if !tableExists(t, db, "test_hubs") {
		t.Error("Open() did not apply migrations")
	}
}

func TestOpen_MigrationFailureClosesDatabase(t *testing.T) {
	broken := fstest.MapFS{
		"20260101_000000_broken.up.sql": &fstest.MapFile{Data: []byte("CREATE TABLE (")},
	}

	_, err := Open(context.Background(), Config{
		Path:       filepath.Join(t.TempDir(), "b.db"),
		Migrations: broken,
	})
	if err == nil {
		t.Fatal("Open() expected error for broken migration")
	}
}

func TestClose_Twice(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "c.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// database/sql tolerates a second Close.
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMaxOpenConnections(t *testing.T) {
	db := openTestDB(t)

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}
