package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	tables := []string{"items", "media", "recognitions", "fingerprints", "index_runs", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := CheckStatus(db)
	if err == nil {
		t.Error("CheckStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	if err := CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after migration returned error: %v", err)
	}
}

func TestUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("First Up() failed: %v", err)
	}
	if err := Up(db); err != nil {
		t.Errorf("Second Up() failed: %v (should be idempotent)", err)
	}

	if err := CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after double migration returned error: %v", err)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO media (item_id, message_id, file_path, type)
		VALUES (999, 1, '/missing/item', 'photo')
	`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_ItemKindCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	_, err := db.Exec("INSERT INTO items (kind, dir_path) VALUES ('album', '/c/1')")
	if err == nil {
		t.Error("Expected check constraint violation for unknown kind, but insert succeeded")
	}
}

func TestSchema_DirPathUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO items (kind, dir_path) VALUES ('post', '/c/1')"); err != nil {
		t.Fatalf("Failed to insert first item: %v", err)
	}

	_, err := db.Exec("INSERT INTO items (kind, dir_path) VALUES ('post', '/c/1')")
	if err == nil {
		t.Error("Expected unique constraint violation for duplicate dir_path, but insert succeeded")
	}
}

func TestSchema_RecognitionCascade(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO items (id, kind, dir_path) VALUES (1, 'post', '/c/1')"); err != nil {
		t.Fatalf("inserting item: %v", err)
	}
	if _, err := db.Exec("INSERT INTO media (id, item_id, message_id, file_path, type) VALUES (1, 1, 1, '/c/1/a.jpg', 'photo')"); err != nil {
		t.Fatalf("inserting media: %v", err)
	}
	if _, err := db.Exec("INSERT INTO recognitions (media_id, text, confidence) VALUES (1, 'sale', 0.9)"); err != nil {
		t.Fatalf("inserting recognition: %v", err)
	}

	if _, err := db.Exec("DELETE FROM items WHERE id = 1"); err != nil {
		t.Fatalf("deleting item: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM recognitions").Scan(&count); err != nil {
		t.Fatalf("counting recognitions: %v", err)
	}
	if count != 0 {
		t.Errorf("recognitions = %d after item delete, want 0 (cascade)", count)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}
