package authdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func setupSQLiteStore(t *testing.T) (*SQLiteStore, func()) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test-auth.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	cleanup := func() {
		_ = store.Close()
		_ = os.Remove(dbPath)
	}

	return store, cleanup
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		store, cleanup := setupSQLiteStore(t)
		t.Cleanup(cleanup)
		return store
	})
}

func TestSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "auth.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Errorf("database directory should exist: %v", err)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "auth.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	user, err := store.CreateUser(ctx, "erin")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	group, _, _ := store.GetOrCreateGroup(ctx, "staff")
	if err := store.AddUserGroups(ctx, user.ID, group); err != nil {
		t.Fatalf("AddUserGroups failed: %v", err)
	}
	_ = store.Close()

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	groups, err := reopened.UserGroups(ctx, user.ID)
	if err != nil {
		t.Fatalf("UserGroups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "staff" {
		t.Errorf("unexpected groups after reopen: %v", groupNames(groups))
	}
}

func TestSQLiteStore_FilterPermissionsManyCodenames(t *testing.T) {
	store, cleanup := setupSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	total := 2*sqliteMaxFilterArgs + 7
	codenames := make([]string, 0, total+1)
	for i := 0; i < total; i++ {
		codenames = append(codenames, fmt.Sprintf("perm_%04d", i))
	}
	// Existing records fall in different batches, one of them listed twice.
	wanted := []string{"perm_0000", "perm_0600", codenames[total-1]}
	for _, codename := range wanted {
		if _, _, err := store.GetOrCreatePermission(ctx, UserScope, codename); err != nil {
			t.Fatalf("GetOrCreatePermission(%q) failed: %v", codename, err)
		}
	}
	codenames = append(codenames, "perm_0600")

	permissions, err := store.FilterPermissions(ctx, UserScope, codenames)
	if err != nil {
		t.Fatalf("FilterPermissions failed: %v", err)
	}
	if len(permissions) != len(wanted) {
		t.Fatalf("expected %d permissions, got %d", len(wanted), len(permissions))
	}
	for i, permission := range permissions {
		if permission.Codename != wanted[i] {
			t.Errorf("permission %d = %q, want %q", i, permission.Codename, wanted[i])
		}
	}
}
