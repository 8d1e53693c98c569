package authdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using a PostgreSQL connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, creates the schema if needed and returns the store.
// The store owns the pool and closes it on Close.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store, err := NewPostgresStoreFromPool(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreFromPool wraps an existing pool and creates the schema if needed.
func NewPostgresStoreFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if err := initPostgresSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schema := `
		CREATE TABLE IF NOT EXISTS auth_users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS auth_groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS auth_permissions (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			codename TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (scope, codename)
		);

		CREATE TABLE IF NOT EXISTS auth_user_groups (
			user_id TEXT NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
			group_id TEXT NOT NULL REFERENCES auth_groups(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, group_id)
		);

		CREATE TABLE IF NOT EXISTS auth_user_permissions (
			user_id TEXT NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
			permission_id TEXT NOT NULL REFERENCES auth_permissions(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, permission_id)
		);
	`
	_, err := pool.Exec(ctx, schema)
	return err
}

// CreateUser inserts a new user.
func (store *PostgresStore) CreateUser(ctx context.Context, username string) (*User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	user := &User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO auth_users (id, username, created_at) VALUES ($1, $2, $3) ON CONFLICT (username) DO NOTHING`
	tag, err := store.pool.Exec(ctx, query, user.ID, user.Username, user.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUsernameExists
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (store *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, username, created_at FROM auth_users WHERE id = $1`

	var user User
	err := store.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (store *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT id, username, created_at FROM auth_users WHERE username = $1`

	var user User
	err := store.pool.QueryRow(ctx, query, username).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetOrCreateGroup returns the named group, creating it if needed.
func (store *PostgresStore) GetOrCreateGroup(ctx context.Context, name string) (*Group, bool, error) {
	if err := validateGroupName(name); err != nil {
		return nil, false, err
	}

	query := `INSERT INTO auth_groups (id, name, created_at) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`
	tag, err := store.pool.Exec(ctx, query, uuid.New().String(), name, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}

	group, err := store.GetGroup(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return group, tag.RowsAffected() == 1, nil
}

// GetGroup retrieves a group by name.
func (store *PostgresStore) GetGroup(ctx context.Context, name string) (*Group, error) {
	query := `SELECT id, name, created_at FROM auth_groups WHERE name = $1`

	var group Group
	err := store.pool.QueryRow(ctx, query, name).Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

// GetOrCreatePermission returns the permission for scope and codename, creating it if needed.
func (store *PostgresStore) GetOrCreatePermission(ctx context.Context, scope, codename string) (*Permission, bool, error) {
	if err := validateCodename(scope, codename); err != nil {
		return nil, false, err
	}

	query := `INSERT INTO auth_permissions (id, scope, codename, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (scope, codename) DO NOTHING`
	tag, err := store.pool.Exec(ctx, query, uuid.New().String(), scope, codename, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}

	query = `SELECT id, scope, codename, created_at FROM auth_permissions WHERE scope = $1 AND codename = $2`

	var permission Permission
	err = store.pool.QueryRow(ctx, query, scope, codename).Scan(&permission.ID, &permission.Scope, &permission.Codename, &permission.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrPermissionNotFound
		}
		return nil, false, err
	}
	return &permission, tag.RowsAffected() == 1, nil
}

// FilterPermissions returns the existing permissions in scope whose codename is listed.
func (store *PostgresStore) FilterPermissions(ctx context.Context, scope string, codenames []string) ([]*Permission, error) {
	if len(codenames) == 0 {
		return nil, nil
	}

	query := `SELECT id, scope, codename, created_at FROM auth_permissions WHERE scope = $1 AND codename = ANY($2) ORDER BY codename`
	rows, err := store.pool.Query(ctx, query, scope, codenames)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// AddUserGroups adds the user to each group. Existing memberships are kept as is.
func (store *PostgresStore) AddUserGroups(ctx context.Context, userID string, groups ...*Group) error {
	query := `INSERT INTO auth_user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	return store.batchForUser(ctx, userID, query, groupIDs(groups))
}

// RemoveUserGroups removes the user from each group.
func (store *PostgresStore) RemoveUserGroups(ctx context.Context, userID string, groups ...*Group) error {
	query := `DELETE FROM auth_user_groups WHERE user_id = $1 AND group_id = $2`
	return store.batchForUser(ctx, userID, query, groupIDs(groups))
}

// UserGroups lists the groups a user belongs to, ordered by name.
func (store *PostgresStore) UserGroups(ctx context.Context, userID string) ([]*Group, error) {
	if _, err := store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT g.id, g.name, g.created_at
		FROM auth_groups g
		JOIN auth_user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.name`
	rows, err := store.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Group, error) {
		group := &Group{}
		err := row.Scan(&group.ID, &group.Name, &group.CreatedAt)
		return group, err
	})
}

// AddUserPermissions grants each permission directly to the user.
func (store *PostgresStore) AddUserPermissions(ctx context.Context, userID string, permissions ...*Permission) error {
	query := `INSERT INTO auth_user_permissions (user_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	return store.batchForUser(ctx, userID, query, permissionIDs(permissions))
}

// RemoveUserPermissions revokes each directly granted permission.
func (store *PostgresStore) RemoveUserPermissions(ctx context.Context, userID string, permissions ...*Permission) error {
	query := `DELETE FROM auth_user_permissions WHERE user_id = $1 AND permission_id = $2`
	return store.batchForUser(ctx, userID, query, permissionIDs(permissions))
}

// UserPermissions lists the permissions granted directly to a user, ordered by codename.
func (store *PostgresStore) UserPermissions(ctx context.Context, userID string) ([]*Permission, error) {
	if _, err := store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT p.id, p.scope, p.codename, p.created_at
		FROM auth_permissions p
		JOIN auth_user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1
		ORDER BY p.codename`
	rows, err := store.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// Close closes the connection pool.
func (store *PostgresStore) Close() error {
	store.pool.Close()
	return nil
}

// batchForUser sends query once per related ID in a single transaction.
// The query takes the user ID and the related ID, in that order.
func (store *PostgresStore) batchForUser(ctx context.Context, userID, query string, relatedIDs []string) error {
	if _, err := store.GetUser(ctx, userID); err != nil {
		return err
	}
	if len(relatedIDs) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, store.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, relatedID := range relatedIDs {
			batch.Queue(query, userID, relatedID)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func collectPermissions(rows pgx.Rows) ([]*Permission, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Permission, error) {
		permission := &Permission{}
		err := row.Scan(&permission.ID, &permission.Scope, &permission.Codename, &permission.CreatedAt)
		return permission, err
	})
}
