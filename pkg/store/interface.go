package store

import "github.com/boardsync/boardsync/pkg/model"

// DataStore defines the persistence interface for accounts, tokens, projects,
// and board snapshots. Implementations include the default SQLite store and an
// in-memory store for testing.
type DataStore interface {
	// Close closes the underlying storage connection.
	Close() error

	// ---- Accounts ----

	// CreateAccount creates a new account and returns it with the assigned ID.
	CreateAccount(username string, passwordHash, salt []byte, role model.GlobalRole) (*model.Account, error)

	// GetAccountByUsername retrieves an account by username. Returns (nil, nil) if not found.
	GetAccountByUsername(username string) (*model.Account, error)

	// GetAccountByID retrieves an account by ID. Returns (nil, nil) if not found.
	GetAccountByID(id int64) (*model.Account, error)

	// ---- Tokens ----

	// CreateToken stores a new bearer token (hash only).
	CreateToken(hash string, accountID int64) error

	// GetAccountByTokenHash resolves a token hash to its account. Returns (nil, nil) if not found.
	GetAccountByTokenHash(hash string) (*model.Account, error)

	// ---- Projects ----

	// CreateProject creates a new project owned by an account.
	CreateProject(ownerID int64, name string) (*model.Project, error)

	// GetProject retrieves a project by ID. Returns (nil, nil) if not found.
	GetProject(id string) (*model.Project, error)

	// ListProjects returns all projects owned by an account, oldest first.
	ListProjects(ownerID int64) ([]model.Project, error)

	// RenameProject changes a project's name.
	RenameProject(id, name string) error

	// ---- Snapshots ----

	// SaveSnapshot stores the serialized board state for a project,
	// replacing any previous snapshot.
	SaveSnapshot(projectID string, data []byte) error

	// GetSnapshot retrieves the stored board state for a project.
	// Returns (nil, nil) if no snapshot exists.
	GetSnapshot(projectID string) ([]byte, error)
}

// Compile-time check: *Store implements DataStore.
var _ DataStore = (*Store)(nil)
