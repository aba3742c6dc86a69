package session

import (
	"sync"

	"github.com/boardsync/boardsync/pkg/model"
)

// DefaultTemplate returns the elements seeded into every new session when no
// board template is configured.
func DefaultTemplate() []model.Element {
	return []model.Element{
		{ID: 1, X: 100, Y: 100, W: 50, H: 50},
		{ID: 2, X: 300, Y: 200, W: 60, H: 80},
	}
}

// Registry owns the lifetime of every Session: create on first join, at most
// one live instance per code, dropped only when its user set is empty. It is
// passed as a dependency, never a package global.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	template []model.Element
}

// NewRegistry creates a registry seeding new sessions from template.
// A nil template falls back to DefaultTemplate.
func NewRegistry(template []model.Element) *Registry {
	if template == nil {
		template = DefaultTemplate()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		template: template,
	}
}

// SetTemplate replaces the seed elements used for sessions created after the
// call. Existing sessions are unaffected.
func (r *Registry) SetTemplate(template []model.Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.template = template
}

// GetOrCreate returns the live session for code, creating it if needed.
// Idempotent per code.
func (r *Registry) GetOrCreate(code string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[code]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[code]; ok {
		return s
	}
	s = newSession(code, r.template)
	r.sessions[code] = s
	return s
}

// Get returns the live session for code, if any.
func (r *Registry) Get(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	return s, ok
}

// Remove drops the session for code. Callers must only do this once the
// session's user set is empty.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, code)
}

// RemoveIfEmpty drops sess only if it is still the live session for its code
// and its user set is empty, both re-checked under the registry lock. This
// closes the window where a join to the same code lands between a caller's
// emptiness check and the removal: the joiner repopulates the session, or has
// already replaced it, and the removal becomes a no-op. Reports whether the
// session was removed.
func (r *Registry) RemoveIfEmpty(sess *Session) bool {
	if sess == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[sess.Code()] != sess {
		return false
	}
	if sess.UserCount() != 0 {
		return false
	}
	delete(r.sessions, sess.Code())
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
