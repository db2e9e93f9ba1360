// ABOUTME: SQLite implementation of mock backend storage using modernc.org/sqlite
// ABOUTME: Users, roles and tool configurations with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/calderhq/toolbench/internal/api"
)

// SQLiteStore persists users, roles and tools in a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a store at the given path. The schema is created if
// it doesn't exist; parent directories are created as needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL improves concurrent read behavior
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			is_admin INTEGER NOT NULL DEFAULT 0,
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			code TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS user_roles (
			user_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, role_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (role_id) REFERENCES roles(id)
		);

		CREATE TABLE IF NOT EXISTS tools (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			parameters TEXT NOT NULL DEFAULT '[]',
			inherit_from TEXT,
			code TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tools_active ON tools(is_active);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- Users ---

// CreateUser inserts a new account and returns it with the assigned ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, full_name, is_active, is_admin, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.FullName, u.IsActive, u.IsAdmin, u.AvatarURL, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

// GetUserByEmail looks an account up by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// GetUserByID looks an account up by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, full_name, is_active, is_admin, avatar_url, created_at, updated_at
		FROM users WHERE `+where, arg)

	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName,
		&u.IsActive, &u.IsAdmin, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

// ListUserRoles returns the roles attached to a user, ordered by role ID.
func (s *SQLiteStore) ListUserRoles(ctx context.Context, userID int64) ([]api.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.code, r.description, r.is_active
		FROM roles r JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ? ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer rows.Close()

	var roles []api.Role
	for rows.Next() {
		var r api.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Code, &r.Description, &r.IsActive); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// CreateRole inserts a role and returns its assigned ID.
func (s *SQLiteStore) CreateRole(ctx context.Context, role *api.Role) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (name, code, description, is_active) VALUES (?, ?, ?, ?)`,
		role.Name, role.Code, role.Description, role.IsActive)
	if err != nil {
		return fmt.Errorf("inserting role: %w", err)
	}
	role.ID, err = res.LastInsertId()
	return err
}

// AssignRole links a role to a user.
func (s *SQLiteStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID)
	return err
}

// --- Tools ---

// ListTools returns every tool configuration ordered by ID.
func (s *SQLiteStore) ListTools(ctx context.Context) ([]api.ToolConfig, error) {
	return s.queryTools(ctx, `SELECT id, name, description, is_active, parameters, inherit_from, code, created_at, updated_at
		FROM tools ORDER BY id`)
}

// ListActiveTools returns only active tools, the inheritable subset.
func (s *SQLiteStore) ListActiveTools(ctx context.Context) ([]api.ToolConfig, error) {
	return s.queryTools(ctx, `SELECT id, name, description, is_active, parameters, inherit_from, code, created_at, updated_at
		FROM tools WHERE is_active = 1 ORDER BY id`)
}

func (s *SQLiteStore) queryTools(ctx context.Context, query string, args ...any) ([]api.ToolConfig, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tools: %w", err)
	}
	defer rows.Close()

	tools := []api.ToolConfig{}
	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		tools = append(tools, *tool)
	}
	return tools, rows.Err()
}

// GetTool fetches one tool by ID.
func (s *SQLiteStore) GetTool(ctx context.Context, id int64) (*api.ToolConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, is_active, parameters, inherit_from, code, created_at, updated_at
		FROM tools WHERE id = ?`, id)
	tool, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tool, nil
}

// GetToolByName fetches one tool by its unique name.
func (s *SQLiteStore) GetToolByName(ctx context.Context, name string) (*api.ToolConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, is_active, parameters, inherit_from, code, created_at, updated_at
		FROM tools WHERE name = ?`, name)
	tool, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tool, nil
}

// CreateTool inserts a tool and fills in its ID and timestamps.
// inherit_from, when set, must name an existing active tool.
func (s *SQLiteStore) CreateTool(ctx context.Context, tool *api.ToolConfig) error {
	if err := s.checkInherit(ctx, tool.InheritFrom); err != nil {
		return err
	}
	params, err := marshalParams(tool.Parameters)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tool.CreatedAt = now
	tool.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tools (name, description, is_active, parameters, inherit_from, code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tool.Name, tool.Description, tool.IsActive, params, nullable(tool.InheritFrom), tool.Code, tool.CreatedAt, tool.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting tool: %w", err)
	}
	tool.ID, err = res.LastInsertId()
	return err
}

// CreateTools inserts a batch of tools in one transaction. Any failure rolls
// the whole batch back, so an import never partially applies.
func (s *SQLiteStore) CreateTools(ctx context.Context, tools []api.ToolConfig) ([]api.ToolConfig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	created := make([]api.ToolConfig, 0, len(tools))
	for _, tool := range tools {
		if err := s.checkInherit(ctx, tool.InheritFrom); err != nil {
			return nil, err
		}
		params, err := marshalParams(tool.Parameters)
		if err != nil {
			return nil, err
		}
		tool.CreatedAt = now
		tool.UpdatedAt = now

		res, err := tx.ExecContext(ctx, `
			INSERT INTO tools (name, description, is_active, parameters, inherit_from, code, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			tool.Name, tool.Description, tool.IsActive, params, nullable(tool.InheritFrom), tool.Code, tool.CreatedAt, tool.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, ErrDuplicateName
			}
			return nil, fmt.Errorf("inserting tool: %w", err)
		}
		if tool.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
		created = append(created, tool)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	return created, nil
}

// UpdateTool replaces the mutable fields of an existing tool.
func (s *SQLiteStore) UpdateTool(ctx context.Context, id int64, tool *api.ToolConfig) (*api.ToolConfig, error) {
	if err := s.checkInherit(ctx, tool.InheritFrom); err != nil {
		return nil, err
	}
	params, err := marshalParams(tool.Parameters)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tools SET name = ?, description = ?, is_active = ?, parameters = ?, inherit_from = ?, code = ?, updated_at = ?
		WHERE id = ?`,
		tool.Name, tool.Description, tool.IsActive, params, nullable(tool.InheritFrom), tool.Code, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("updating tool: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetTool(ctx, id)
}

// DeleteTool removes a tool by ID.
func (s *SQLiteStore) DeleteTool(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tools WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tool: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetToolActive flips a tool's active flag and returns the updated record.
func (s *SQLiteStore) SetToolActive(ctx context.Context, id int64, active bool) (*api.ToolConfig, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tools SET is_active = ?, updated_at = ? WHERE id = ?`, active, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("toggling tool: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetTool(ctx, id)
}

// checkInherit verifies that inheritFrom names an existing active tool.
// An empty value passes.
func (s *SQLiteStore) checkInherit(ctx context.Context, inheritFrom string) error {
	if inheritFrom == "" {
		return nil
	}
	parent, err := s.GetToolByName(ctx, inheritFrom)
	if err == ErrNotFound {
		return ErrBadInherit
	}
	if err != nil {
		return err
	}
	if !parent.IsActive {
		return ErrBadInherit
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTool(row rowScanner) (*api.ToolConfig, error) {
	var tool api.ToolConfig
	var params string
	var inherit sql.NullString

	err := row.Scan(&tool.ID, &tool.Name, &tool.Description, &tool.IsActive,
		&params, &inherit, &tool.Code, &tool.CreatedAt, &tool.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if inherit.Valid {
		tool.InheritFrom = inherit.String
	}
	if err := json.Unmarshal([]byte(params), &tool.Parameters); err != nil {
		return nil, fmt.Errorf("decoding tool parameters: %w", err)
	}
	return &tool, nil
}

func marshalParams(params []api.ToolParameter) (string, error) {
	if params == nil {
		params = []api.ToolParameter{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encoding tool parameters: %w", err)
	}
	return string(data), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
