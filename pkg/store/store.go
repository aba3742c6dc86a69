// Package store provides SQLite-backed persistence for accounts, tokens,
// projects, and board snapshots.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/boardsync/boardsync/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// Store provides database access for all BoardSync entities.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable FK: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT    NOT NULL UNIQUE CHECK(length(username) > 0 AND length(username) <= 32),
		password_hash BLOB    NOT NULL,
		salt          BLOB    NOT NULL,
		role          INTEGER NOT NULL DEFAULT 0 CHECK(role >= 0 AND role <= 1),
		created_at    TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS tokens (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		hash       TEXT    NOT NULL UNIQUE,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		created_at TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT    PRIMARY KEY,
		owner_id   INTEGER NOT NULL REFERENCES accounts(id),
		name       TEXT    NOT NULL,
		created_at TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		project_id TEXT PRIMARY KEY REFERENCES projects(id),
		data       BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version:    1,
			statements: []string{schema},
		},
		{
			version: 2,
			statements: []string{
				"CREATE INDEX IF NOT EXISTS idx_tokens_hash ON tokens(hash)",
				"CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id)",
			},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("store: migrate: %w", err)
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("store: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("store: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("store: read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("store: update schema version: %w", err)
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

// ---- Accounts ----

// CreateAccount creates a new account and returns it with the assigned ID.
// It validates the username format and role before inserting.
func (s *Store) CreateAccount(username string, passwordHash, salt []byte, role model.GlobalRole) (*model.Account, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("store: create account: %w", err)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("store: create account: %w", model.ErrInvalidRole)
	}
	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO accounts (username, password_hash, salt, role, created_at) VALUES (?, ?, ?, ?, ?)",
		username, passwordHash, salt, int(role), formatDBTime(createdAt))
	if err != nil {
		return nil, fmt.Errorf("store: create account: %w", err)
	}
	id, _ := res.LastInsertId()
	return &model.Account{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Salt:         salt,
		Role:         role,
		CreatedAt:    createdAt,
	}, nil
}

func (s *Store) scanAccount(row *sql.Row, wrap string) (*model.Account, error) {
	a := &model.Account{}
	var roleInt int
	var createdAt string
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Salt, &roleInt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", wrap, err)
	}
	a.Role = model.GlobalRole(roleInt)
	a.CreatedAt, err = parseDBTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", wrap, err)
	}
	return a, nil
}

// GetAccountByUsername retrieves an account by username.
func (s *Store) GetAccountByUsername(username string) (*model.Account, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT id, username, password_hash, salt, role, created_at FROM accounts WHERE username = ?", username)
	return s.scanAccount(row, "get account by username")
}

// GetAccountByID retrieves an account by ID.
func (s *Store) GetAccountByID(id int64) (*model.Account, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT id, username, password_hash, salt, role, created_at FROM accounts WHERE id = ?", id)
	return s.scanAccount(row, "get account")
}

// ---- Tokens ----

// CreateToken stores a new bearer token (hash only).
func (s *Store) CreateToken(hash string, accountID int64) error {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO tokens (hash, account_id) VALUES (?, ?)", hash, accountID)
	if err != nil {
		return fmt.Errorf("store: create token: %w", err)
	}
	return nil
}

// GetAccountByTokenHash resolves a token hash to its account.
func (s *Store) GetAccountByTokenHash(hash string) (*model.Account, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT a.id, a.username, a.password_hash, a.salt, a.role, a.created_at
		 FROM accounts a JOIN tokens t ON t.account_id = a.id
		 WHERE t.hash = ?`, hash)
	return s.scanAccount(row, "get account by token")
}

// ---- Projects ----

// CreateProject creates a new project owned by an account.
func (s *Store) CreateProject(ownerID int64, name string) (*model.Project, error) {
	p := &model.Project{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO projects (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.OwnerID, p.Name, formatDBTime(p.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("store: create project: %w", err)
	}
	return p, nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(id string) (*model.Project, error) {
	p := &model.Project{}
	var createdAt string
	err := s.db.QueryRowContext(context.Background(),
		"SELECT id, owner_id, name, created_at FROM projects WHERE id = ?", id).
		Scan(&p.ID, &p.OwnerID, &p.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	p.CreatedAt, err = parseDBTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects owned by an account, oldest first.
func (s *Store) ListProjects(ownerID int64) ([]model.Project, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id, owner_id, name, created_at FROM projects WHERE owner_id = ? ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan project: %w", err)
		}
		p.CreatedAt, err = parseDBTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("store: scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// RenameProject changes a project's name.
func (s *Store) RenameProject(id, name string) error {
	res, err := s.db.ExecContext(context.Background(),
		"UPDATE projects SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("store: rename project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rename project: %w", err)
	}
	if n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// ---- Snapshots ----

// SaveSnapshot stores the serialized board state for a project,
// replacing any previous snapshot.
func (s *Store) SaveSnapshot(projectID string, data []byte) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO snapshots (project_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		projectID, data, formatDBTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the stored board state for a project.
func (s *Store) GetSnapshot(projectID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(context.Background(),
		"SELECT data FROM snapshots WHERE project_id = ?", projectID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get snapshot: %w", err)
	}
	return data, nil
}
