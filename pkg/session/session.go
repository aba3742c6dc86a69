// Package session implements the in-memory collaboration session coordinator:
// per-session user registry, element locking, ownership succession, identity
// transitions, and the diff-based undo/redo engine.
//
// Every exported operation on a Session is atomic: it acquires the session's
// mutex, performs its check-then-mutate sequence against the current state,
// and releases the mutex before the caller broadcasts. Sessions with
// different codes share nothing and proceed fully in parallel.
package session

import (
	"sync"
	"time"

	"github.com/boardsync/boardsync/pkg/model"
	"github.com/boardsync/boardsync/pkg/permission"
)

// DefaultProjectName is assigned to sessions that are not linked to a
// persisted project.
const DefaultProjectName = "New Project"

// maxUndoDepth caps the undo stack; pushing beyond it drops the oldest entry.
const maxUndoDepth = 50

// pendingMove remembers where an element was when its current holder grabbed
// it, so the whole drag collapses into a single undo diff on release.
type pendingMove struct {
	userID string
	x, y   float64
}

// Session is one isolated collaboration unit. It is created and destroyed
// only by the Registry.
type Session struct {
	mu sync.Mutex

	code            string
	projectName     string
	linkedProjectID string

	elements      []*model.Element
	users         map[string]*model.User
	nextJoinOrder int
	nextElementID int64

	undoStack []model.Action
	redoStack []model.Action

	// editorGrants remembers a previously granted (or revoked) editor flag
	// per stable identity, so the grant survives anonymous⇄authenticated
	// transitions and reconnects.
	editorGrants map[string]bool

	pendingMoves   map[int64]pendingMove
	pendingResizes map[string]map[int64]model.ElementSnapshot

	chat []model.ChatMessage

	now func() time.Time
}

func newSession(code string, template []model.Element) *Session {
	s := &Session{
		code:           code,
		projectName:    DefaultProjectName,
		users:          make(map[string]*model.User),
		nextJoinOrder:  1,
		nextElementID:  1,
		editorGrants:   make(map[string]bool),
		pendingMoves:   make(map[int64]pendingMove),
		pendingResizes: make(map[string]map[int64]model.ElementSnapshot),
		now:            time.Now,
	}
	for _, tpl := range template {
		el := tpl // copy
		s.elements = append(s.elements, &el)
		if el.ID >= s.nextElementID {
			s.nextElementID = el.ID + 1
		}
	}
	return s
}

// Code returns the session's unique key.
func (s *Session) Code() string {
	return s.code
}

// ProjectName returns the current display name.
func (s *Session) ProjectName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectName
}

// Rename changes the project name if the requester may manage the session.
// Returns false (and changes nothing) otherwise.
func (s *Session) Rename(userID, newName string) bool {
	if newName == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || !permission.CanRenameSession(u) {
		return false
	}
	s.projectName = newName
	return true
}

// LinkProject associates the session with a persisted project id. The core
// itself never dereferences the id; it only travels with the session.
func (s *Session) LinkProject(projectID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkedProjectID = projectID
	if name != "" {
		s.projectName = name
	}
}

// LinkedProject returns the associated project id, or "".
func (s *Session) LinkedProject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkedProjectID
}

// UserCount returns the number of present users.
func (s *Session) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// SetCursor updates a user's ephemeral cursor position. Returns false if the
// user is not present.
func (s *Session) SetCursor(userID string, x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false
	}
	u.CursorX, u.CursorY = x, y
	return true
}

// AppendChat records a chat message and returns it for echoing. Returns
// false if the text is empty or the sender unknown.
func (s *Session) AppendChat(userID, text string) (model.ChatMessage, bool) {
	if text == "" {
		return model.ChatMessage{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return model.ChatMessage{}, false
	}
	msg := model.ChatMessage{
		UserID:    userID,
		Text:      text,
		Timestamp: s.now().UnixMilli(),
	}
	s.chat = append(s.chat, msg)
	return msg, true
}

// ChatHistory returns a copy of the session's chat log.
func (s *Session) ChatHistory() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

// ElementsSnapshot returns a copy of the element sequence (z-order
// preserved) together with the project name, suitable for the canonical
// element-state broadcast.
func (s *Session) ElementsSnapshot() ([]model.Element, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Element, len(s.elements))
	for i, el := range s.elements {
		out[i] = *el
	}
	return out, s.projectName
}

// UsersSnapshot returns a copy of the user list sorted by join order,
// suitable for the canonical user-list broadcast.
func (s *Session) UsersSnapshot() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedUsersLocked()
}

func (s *Session) sortedUsersLocked() []model.User {
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].JoinOrder < out[j-1].JoinOrder; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Conns returns the transport handles of all present users. Nil handles
// (users attached without a live connection, e.g. in tests) are skipped.
func (s *Session) Conns() []model.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conn, 0, len(s.users))
	for _, u := range s.users {
		if u.Conn != nil {
			out = append(out, u.Conn)
		}
	}
	return out
}

// User returns a copy of the given user, if present.
func (s *Session) User(userID string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.User{}, false
	}
	return *u, true
}

// Element returns a copy of the given element, if present.
func (s *Session) Element(id int64) (model.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.findElementLocked(id)
	if el == nil {
		return model.Element{}, false
	}
	return *el, true
}

func (s *Session) findElementLocked(id int64) *model.Element {
	for _, el := range s.elements {
		if el.ID == id {
			return el
		}
	}
	return nil
}
