package db_test

import (
	"path/filepath"
	"testing"

	"github.com/vrsandeep/oilspill-go/internal/assets"
	"github.com/vrsandeep/oilspill-go/internal/db"
	"github.com/vrsandeep/oilspill-go/internal/testutil"
)

func TestMigrationsCreateHistoryTables(t *testing.T) {
	database := testutil.SetupTestDB(t)

	for _, table := range []string{"uploads", "runs"} {
		var name string
		err := database.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("Expected table %s to exist: %v", table, err)
		}
	}

	// The status column only accepts known run statuses.
	_, err := database.Exec("INSERT INTO runs (file_id, file_name, status, started_at) VALUES (?, ?, ?, datetime('now'))",
		"f1", "scene.tif", "exploded")
	if err == nil {
		t.Error("Expected CHECK constraint to reject an unknown run status")
	}
}

func TestInitDBAndRunMigrationsTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	database, err := db.InitDB(path)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		t.Fatalf("First migration run failed: %v", err)
	}
	// A second run has nothing to do and must not fail.
	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
}
