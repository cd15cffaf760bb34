package db

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("Expected foreign_keys=1, got %d", foreignKeys)
	}
}

func TestNewDBAppliesAllMigrations(t *testing.T) {
	db := newTestDB(t)

	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}
	latest, err := LatestMigrationVersion(migFS)
	if err != nil {
		t.Fatalf("LatestMigrationVersion() failed: %v", err)
	}
	if latest != 3 {
		t.Errorf("Expected latest migration 3, got %d", latest)
	}

	version, dirty, err := db.MigrateVersion(migFS)
	if err != nil {
		t.Fatalf("MigrateVersion() failed: %v", err)
	}
	if version != latest || dirty {
		t.Errorf("Expected version %d clean, got %d dirty=%v", latest, version, dirty)
	}

	counts, err := db.TableCounts()
	if err != nil {
		t.Fatalf("TableCounts() failed: %v", err)
	}
	for _, table := range []string{"sessions", "frame_results", "frame_times"} {
		if n, ok := counts[table]; !ok || n != 0 {
			t.Errorf("Expected empty %s table, got %d (present=%v)", table, n, ok)
		}
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := newTestDB(t)
	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatal(err)
	}

	if err := db.MigrateDown(migFS); err != nil {
		t.Fatalf("MigrateDown() failed: %v", err)
	}
	version, _, err := db.MigrateVersion(migFS)
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Errorf("Expected version 2 after down, got %d", version)
	}
	if _, err := db.TableCounts(); err == nil {
		t.Error("Expected frame_times to be gone after rolling back")
	}

	if err := db.MigrateUp(migFS); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	// Running again is a no-op.
	if err := db.MigrateUp(migFS); err != nil {
		t.Fatalf("second MigrateUp() failed: %v", err)
	}
	version, _, err = db.MigrateVersion(migFS)
	if err != nil {
		t.Fatal(err)
	}
	if version != 3 {
		t.Errorf("Expected version 3 after up, got %d", version)
	}
}

func TestOpenDBLeavesSchemaAlone(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "bare.db"))
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	defer db.Close()

	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatal(err)
	}
	version, dirty, err := db.MigrateVersion(migFS)
	if err != nil {
		t.Fatalf("MigrateVersion() failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("Expected unmigrated database, got version %d dirty=%v", version, dirty)
	}
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)

	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	// Routes may answer 403 to non-loopback callers, but must be registered.
	for _, endpoint := range []string{"/debug/db-stats", "/debug/backup", "/debug/tailsql/"} {
		t.Run(endpoint, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, endpoint, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			if w.Code == http.StatusNotFound {
				t.Errorf("Endpoint %s should be registered, got 404", endpoint)
			}
		})
	}
}
