package authdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// sqliteMaxFilterArgs bounds the codenames bound in one FilterPermissions query.
// Older SQLite builds cap bound parameters at 999; one is taken by the scope.
const sqliteMaxFilterArgs = 500

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed auth store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS auth_users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS auth_groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS auth_permissions (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			codename TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE(scope, codename)
		);

		CREATE TABLE IF NOT EXISTS auth_user_groups (
			user_id TEXT NOT NULL,
			group_id TEXT NOT NULL,
			PRIMARY KEY (user_id, group_id)
		);
		CREATE INDEX IF NOT EXISTS idx_user_groups_group_id ON auth_user_groups(group_id);

		CREATE TABLE IF NOT EXISTS auth_user_permissions (
			user_id TEXT NOT NULL,
			permission_id TEXT NOT NULL,
			PRIMARY KEY (user_id, permission_id)
		);
		CREATE INDEX IF NOT EXISTS idx_user_permissions_permission_id ON auth_user_permissions(permission_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateUser inserts a new user.
func (store *SQLiteStore) CreateUser(ctx context.Context, username string) (*User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	user := &User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now(),
	}

	query := `INSERT INTO auth_users (id, username, created_at) VALUES (?, ?, ?) ON CONFLICT(username) DO NOTHING`
	result, err := store.db.ExecContext(ctx, query, user.ID, user.Username, user.CreatedAt)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrUsernameExists
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (store *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, username, created_at FROM auth_users WHERE id = ?`
	row := store.db.QueryRowContext(ctx, query, id)

	var user User
	err := row.Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (store *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT id, username, created_at FROM auth_users WHERE username = ?`
	row := store.db.QueryRowContext(ctx, query, username)

	var user User
	err := row.Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetOrCreateGroup returns the named group, creating it if needed.
func (store *SQLiteStore) GetOrCreateGroup(ctx context.Context, name string) (*Group, bool, error) {
	if err := validateGroupName(name); err != nil {
		return nil, false, err
	}

	query := `INSERT INTO auth_groups (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`
	result, err := store.db.ExecContext(ctx, query, uuid.New().String(), name, time.Now())
	if err != nil {
		return nil, false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	group, err := store.GetGroup(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return group, rows == 1, nil
}

// GetGroup retrieves a group by name.
func (store *SQLiteStore) GetGroup(ctx context.Context, name string) (*Group, error) {
	query := `SELECT id, name, created_at FROM auth_groups WHERE name = ?`
	row := store.db.QueryRowContext(ctx, query, name)

	var group Group
	err := row.Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

// GetOrCreatePermission returns the permission for scope and codename, creating it if needed.
func (store *SQLiteStore) GetOrCreatePermission(ctx context.Context, scope, codename string) (*Permission, bool, error) {
	if err := validateCodename(scope, codename); err != nil {
		return nil, false, err
	}

	query := `INSERT INTO auth_permissions (id, scope, codename, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(scope, codename) DO NOTHING`
	result, err := store.db.ExecContext(ctx, query, uuid.New().String(), scope, codename, time.Now())
	if err != nil {
		return nil, false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	query = `SELECT id, scope, codename, created_at FROM auth_permissions WHERE scope = ? AND codename = ?`
	row := store.db.QueryRowContext(ctx, query, scope, codename)

	var permission Permission
	if err := row.Scan(&permission.ID, &permission.Scope, &permission.Codename, &permission.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrPermissionNotFound
		}
		return nil, false, err
	}
	return &permission, rows == 1, nil
}

// FilterPermissions returns the existing permissions in scope whose codename is listed.
// Codenames are queried in batches of sqliteMaxFilterArgs to stay under SQLite's bound-parameter limit.
func (store *SQLiteStore) FilterPermissions(ctx context.Context, scope string, codenames []string) ([]*Permission, error) {
	unique := make([]string, 0, len(codenames))
	seen := make(map[string]bool, len(codenames))
	for _, codename := range codenames {
		if !seen[codename] {
			seen[codename] = true
			unique = append(unique, codename)
		}
	}

	var permissions []*Permission
	for start := 0; start < len(unique); start += sqliteMaxFilterArgs {
		batch := unique[start:min(start+sqliteMaxFilterArgs, len(unique))]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		query := `SELECT id, scope, codename, created_at FROM auth_permissions WHERE scope = ? AND codename IN (` + placeholders + `)`

		args := make([]any, 0, len(batch)+1)
		args = append(args, scope)
		for _, codename := range batch {
			args = append(args, codename)
		}

		rows, err := store.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		found, err := scanPermissions(rows)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, found...)
	}

	slices.SortFunc(permissions, func(a, b *Permission) int {
		return strings.Compare(a.Codename, b.Codename)
	})
	return permissions, nil
}

// AddUserGroups adds the user to each group. Existing memberships are kept as is.
func (store *SQLiteStore) AddUserGroups(ctx context.Context, userID string, groups ...*Group) error {
	query := `INSERT INTO auth_user_groups (user_id, group_id) VALUES (?, ?) ON CONFLICT DO NOTHING`
	return store.execForUser(ctx, userID, query, groupIDs(groups))
}

// RemoveUserGroups removes the user from each group.
func (store *SQLiteStore) RemoveUserGroups(ctx context.Context, userID string, groups ...*Group) error {
	query := `DELETE FROM auth_user_groups WHERE user_id = ? AND group_id = ?`
	return store.execForUser(ctx, userID, query, groupIDs(groups))
}

// UserGroups lists the groups a user belongs to, ordered by name.
func (store *SQLiteStore) UserGroups(ctx context.Context, userID string) ([]*Group, error) {
	if _, err := store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT g.id, g.name, g.created_at
		FROM auth_groups g
		JOIN auth_user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = ?
		ORDER BY g.name`
	rows, err := store.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var groups []*Group
	for rows.Next() {
		group := &Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// AddUserPermissions grants each permission directly to the user.
func (store *SQLiteStore) AddUserPermissions(ctx context.Context, userID string, permissions ...*Permission) error {
	query := `INSERT INTO auth_user_permissions (user_id, permission_id) VALUES (?, ?) ON CONFLICT DO NOTHING`
	return store.execForUser(ctx, userID, query, permissionIDs(permissions))
}

// RemoveUserPermissions revokes each directly granted permission.
func (store *SQLiteStore) RemoveUserPermissions(ctx context.Context, userID string, permissions ...*Permission) error {
	query := `DELETE FROM auth_user_permissions WHERE user_id = ? AND permission_id = ?`
	return store.execForUser(ctx, userID, query, permissionIDs(permissions))
}

// UserPermissions lists the permissions granted directly to a user, ordered by codename.
func (store *SQLiteStore) UserPermissions(ctx context.Context, userID string) ([]*Permission, error) {
	if _, err := store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT p.id, p.scope, p.codename, p.created_at
		FROM auth_permissions p
		JOIN auth_user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = ?
		ORDER BY p.codename`
	rows, err := store.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

// Close closes the database connection.
func (store *SQLiteStore) Close() error {
	return store.db.Close()
}

// execForUser runs query once per related ID inside a single transaction.
// The query takes the user ID and the related ID, in that order.
func (store *SQLiteStore) execForUser(ctx context.Context, userID, query string, relatedIDs []string) error {
	if _, err := store.GetUser(ctx, userID); err != nil {
		return err
	}
	if len(relatedIDs) == 0 {
		return nil
	}

	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, relatedID := range relatedIDs {
		if _, err := tx.ExecContext(ctx, query, userID, relatedID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func scanPermissions(rows *sql.Rows) ([]*Permission, error) {
	defer func() { _ = rows.Close() }()

	var permissions []*Permission
	for rows.Next() {
		permission := &Permission{}
		if err := rows.Scan(&permission.ID, &permission.Scope, &permission.Codename, &permission.CreatedAt); err != nil {
			return nil, err
		}
		permissions = append(permissions, permission)
	}
	return permissions, rows.Err()
}

func groupIDs(groups []*Group) []string {
	ids := make([]string, 0, len(groups))
	for _, group := range groups {
		ids = append(ids, group.ID)
	}
	return ids
}

func permissionIDs(permissions []*Permission) []string {
	ids := make([]string, 0, len(permissions))
	for _, permission := range permissions {
		ids = append(ids, permission.ID)
	}
	return ids
}
