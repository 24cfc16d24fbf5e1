package testutil

import (
	"testing"

	"tgsearch-go/internal/store"
)

// NewTestStore creates an in-memory SQLite store with the schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	db, err := store.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := db.Exec(store.Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	st := store.NewSQLiteStoreFromDB(db, "", FixedClock())

	t.Cleanup(func() {
		st.Close()
	})
	return st
}
