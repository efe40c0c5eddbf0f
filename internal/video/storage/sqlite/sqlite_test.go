package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
)

// setupTestDB opens a fresh database in a temp directory and applies all
// migrations. The schema under test is exactly what production runs.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// TestNewDBAppliesPragmas verifies the connection is configured for WAL
// journaling with foreign keys enforced.
func TestNewDBAppliesPragmas(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("failed to query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}
}

// TestMigrateUpCreatesTables verifies the full schema exists after MigrateUp.
func TestMigrateUpCreatesTables(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{
		"segmentation_runs",
		"frame_metrics",
		"evaluations",
		"model_snapshots",
		"sweep_results",
	} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after MigrateUp: %v", table, err)
		}
	}
}

// TestMigrateVersionMatchesLatest verifies a migrated database reports the
// same version the embedded migration files declare.
func TestMigrateVersionMatchesLatest(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if dirty {
		t.Error("fresh migration reported dirty")
	}

	latest, err := LatestMigrationVersion()
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	if version != latest {
		t.Errorf("migrated version = %d, latest embedded = %d", version, latest)
	}
	if latest < 2 {
		t.Errorf("latest embedded version = %d, want at least 2", latest)
	}
}

// TestMigrateDownStepsBackOneVersion verifies MigrateDown rolls back a
// single migration at a time, and repeated calls tear the schema down to
// nothing.
func TestMigrateDownStepsBackOneVersion(t *testing.T) {
	db := setupTestDB(t)

	tableExists := func(name string) bool {
		var found string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
		).Scan(&found)
		return err == nil
	}

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("first MigrateDown failed: %v", err)
	}
	if tableExists("sweep_results") {
		t.Error("sweep_results still present after rolling back one version")
	}
	if !tableExists("segmentation_runs") {
		t.Error("segmentation_runs dropped by a single-step rollback")
	}

	version, _, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version after one rollback = %d, want 1", version)
	}

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("second MigrateDown failed: %v", err)
	}
	var count int
	err = db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != 'schema_migrations'`,
	).Scan(&count)
	if err != nil {
		t.Fatalf("failed to count tables: %v", err)
	}
	if count != 0 {
		t.Errorf("%d tables remain after rolling back everything, want 0", count)
	}
}

// TestMigrateToVersion verifies MigrateTo moves the schema in either
// direction and treats the current version as a no-op.
func TestMigrateToVersion(t *testing.T) {
	db := setupTestDB(t)

	tableExists := func(name string) bool {
		var found string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
		).Scan(&found)
		return err == nil
	}

	if err := db.MigrateTo(1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}
	if tableExists("sweep_results") {
		t.Error("sweep_results still present after migrating down to version 1")
	}
	if !tableExists("segmentation_runs") {
		t.Error("segmentation_runs missing at version 1")
	}

	if err := db.MigrateTo(1); err != nil {
		t.Fatalf("MigrateTo to the current version should be a no-op, got %v", err)
	}

	latest, err := LatestMigrationVersion()
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	if err := db.MigrateTo(latest); err != nil {
		t.Fatalf("MigrateTo(%d) failed: %v", latest, err)
	}
	if !tableExists("sweep_results") {
		t.Error("sweep_results missing after migrating back up")
	}

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != latest || dirty {
		t.Errorf("version = %d dirty = %v, want %d false", version, dirty, latest)
	}
}

// TestCheckAndPromptMigrationsFreshDB verifies an empty database is
// initialized automatically instead of prompting.
func TestCheckAndPromptMigrationsFreshDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fresh.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	needsAction, err := db.CheckAndPromptMigrations()
	if err != nil {
		t.Fatalf("CheckAndPromptMigrations on fresh db failed: %v", err)
	}
	if needsAction {
		t.Error("fresh database should auto-initialize, not prompt")
	}

	version, _, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion after auto-init failed: %v", err)
	}
	latest, _ := LatestMigrationVersion()
	if version != latest {
		t.Errorf("auto-init version = %d, want %d", version, latest)
	}
}

// TestCheckAndPromptMigrationsUpToDate verifies a current database needs no
// action.
func TestCheckAndPromptMigrationsUpToDate(t *testing.T) {
	db := setupTestDB(t)

	needsAction, err := db.CheckAndPromptMigrations()
	if err != nil {
		t.Fatalf("CheckAndPromptMigrations failed: %v", err)
	}
	if needsAction {
		t.Error("up-to-date database should not prompt for migrations")
	}
}

// TestGetMigrationStatus verifies the status map fields on a migrated
// database.
func TestGetMigrationStatus(t *testing.T) {
	db := setupTestDB(t)

	status, err := db.GetMigrationStatus()
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}

	if dirty, ok := status["dirty"].(bool); !ok || dirty {
		t.Errorf("status dirty = %v, want false", status["dirty"])
	}
	if exists, ok := status["schema_migrations_exists"].(bool); !ok || !exists {
		t.Errorf("status schema_migrations_exists = %v, want true", status["schema_migrations_exists"])
	}
	current, _ := status["current_version"].(uint)
	latest, _ := status["latest_version"].(uint)
	if current == 0 || current != latest {
		t.Errorf("status versions current=%d latest=%d, want equal and nonzero", current, latest)
	}
}

// TestRetryOnBusyRetriesTransientLocks verifies busy errors are retried and
// other errors abort immediately.
func TestRetryOnBusyRetriesTransientLocks(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retryOnBusy after transient locks: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}

	calls = 0
	wantErr := errors.New("syntax error")
	err = retryOnBusy(func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("retryOnBusy error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("non-busy error retried %d times, want 1 call", calls)
	}
}

// TestRetryOnBusyGivesUp verifies a persistently locked database surfaces
// the busy error after the attempts are exhausted.
func TestRetryOnBusyGivesUp(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil {
		t.Fatal("expected error from persistently busy database")
	}
	if calls != 5 {
		t.Errorf("fn called %d times, want 5", calls)
	}
}
