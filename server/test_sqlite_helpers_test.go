package server

import (
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tably.sqlite")
	store, err := NewSQLiteStore(SQLiteStoreConfig{DSN: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestAuthStore(t *testing.T, store *SQLiteStore) *AuthSQLiteStore {
	t.Helper()

	auth, err := NewAuthSQLiteStore(store.DB())
	if err != nil {
		t.Fatalf("NewAuthSQLiteStore: %v", err)
	}
	return auth
}
