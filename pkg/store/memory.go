package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boardsync/boardsync/pkg/model"
)

var ErrProjectNotFound = errors.New("store: project not found")

// MemoryStore provides an in-memory DataStore implementation for tests.
// It mirrors SQLite behavior for validation and error handling.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextAccountID int64

	accountsByID       map[int64]*model.Account
	accountsByUsername map[string]*model.Account
	tokensByHash       map[string]int64
	projectsByID       map[string]*model.Project
	snapshots          map[string][]byte
}

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:                now,
		nextAccountID:      1,
		accountsByID:       make(map[int64]*model.Account),
		accountsByUsername: make(map[string]*model.Account),
		tokensByHash:       make(map[string]int64),
		projectsByID:       make(map[string]*model.Project),
		snapshots:          make(map[string][]byte),
	}
}

// Compile-time check: *MemoryStore implements DataStore.
var _ DataStore = (*MemoryStore)(nil)

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateAccount creates a new account and returns it with the assigned ID.
func (s *MemoryStore) CreateAccount(username string, passwordHash, salt []byte, role model.GlobalRole) (*model.Account, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("store: create account: %w", err)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("store: create account: %w", model.ErrInvalidRole)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accountsByUsername[username]; exists {
		return nil, fmt.Errorf("store: create account: constraint failed: UNIQUE constraint failed: accounts.username")
	}
	account := &model.Account{
		ID:           s.nextAccountID,
		Username:     username,
		PasswordHash: passwordHash,
		Salt:         salt,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	s.nextAccountID++
	s.accountsByID[account.ID] = account
	s.accountsByUsername[username] = account
	copyAccount := *account
	return &copyAccount, nil
}

// GetAccountByUsername retrieves an account by username.
func (s *MemoryStore) GetAccountByUsername(username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accountsByUsername[username]
	if !ok {
		return nil, nil
	}
	copyAccount := *account
	return &copyAccount, nil
}

// GetAccountByID retrieves an account by ID.
func (s *MemoryStore) GetAccountByID(id int64) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accountsByID[id]
	if !ok {
		return nil, nil
	}
	copyAccount := *account
	return &copyAccount, nil
}

// CreateToken stores a new bearer token (hash only).
func (s *MemoryStore) CreateToken(hash string, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokensByHash[hash]; exists {
		return fmt.Errorf("store: create token: constraint failed: UNIQUE constraint failed: tokens.hash")
	}
	s.tokensByHash[hash] = accountID
	return nil
}

// GetAccountByTokenHash resolves a token hash to its account.
func (s *MemoryStore) GetAccountByTokenHash(hash string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.tokensByHash[hash]
	if !ok {
		return nil, nil
	}
	account, ok := s.accountsByID[accountID]
	if !ok {
		return nil, nil
	}
	copyAccount := *account
	return &copyAccount, nil
}

// CreateProject creates a new project owned by an account.
func (s *MemoryStore) CreateProject(ownerID int64, name string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project := &model.Project{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	s.projectsByID[project.ID] = project
	copyProject := *project
	return &copyProject, nil
}

// GetProject retrieves a project by ID.
func (s *MemoryStore) GetProject(id string) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projectsByID[id]
	if !ok {
		return nil, nil
	}
	copyProject := *project
	return &copyProject, nil
}

// ListProjects returns all projects owned by an account, oldest first.
func (s *MemoryStore) ListProjects(ownerID int64) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var projects []model.Project
	for _, p := range s.projectsByID {
		if p.OwnerID == ownerID {
			projects = append(projects, *p)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}

// RenameProject changes a project's name.
func (s *MemoryStore) RenameProject(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projectsByID[id]
	if !ok {
		return ErrProjectNotFound
	}
	project.Name = name
	return nil
}

// SaveSnapshot stores the serialized board state for a project.
func (s *MemoryStore) SaveSnapshot(projectID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.snapshots[projectID] = stored
	return nil
}

// GetSnapshot retrieves the stored board state for a project.
func (s *MemoryStore) GetSnapshot(projectID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.snapshots[projectID]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
