package session

import (
	"github.com/boardsync/boardsync/pkg/model"
	"github.com/boardsync/boardsync/pkg/permission"
)

// Join adds a user to the session, or refreshes an existing entry on
// reconnect. New users start as viewers and are promoted to owner when the
// session has none. Reconnects only update name and connection; role fields
// are never touched. isAdmin elevates the global role and never demotes.
// Returns nil if userID is empty.
func (s *Session) Join(userID, name string, isAdmin bool, conn model.Conn) *model.User {
	if userID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		u = s.newUserLocked(userID, name)
		s.users[userID] = u
		if !s.hasOwnerLocked() {
			u.SessionRole = model.RoleOwner
		}
	} else {
		if name != "" {
			u.Name = name
		}
	}
	if conn != nil {
		u.Conn = conn
	}
	if isAdmin {
		u.GlobalRole = model.GlobalAdmin
	}
	s.restoreEditorGrantLocked(u)
	return u
}

// Upgrade replaces an anonymous identity with a stable authenticated one,
// carrying forward join order, session role, color, element locks, and any
// in-flight move/resize state. A remembered editor grant for the stable
// identity is merged in. Ownership is never auto-assigned here.
func (s *Session) Upgrade(oldID, newID, newName string, isAdmin bool, conn model.Conn) *model.User {
	if oldID == "" || newID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[oldID]
	if !ok {
		// Placeholder so a late upgrade still lands somewhere sensible.
		u = s.newUserLocked(oldID, "")
		s.users[oldID] = u
	}

	s.transferLocksLocked(oldID, newID)
	delete(s.users, oldID)
	delete(s.users, newID) // stale entry under the new id, if any

	u.UserID = newID
	if newName != "" {
		u.Name = newName
	}
	if isAdmin {
		u.GlobalRole = model.GlobalAdmin
	} else {
		u.GlobalRole = model.GlobalUser
	}
	if conn != nil {
		u.Conn = conn
	}

	s.restoreEditorGrantLocked(u)
	if stable, ok := model.ParseIdentity(newID).Stable(); ok {
		s.editorGrants[stable] = u.SessionRole == model.RoleEditor
	}

	s.transferPendingLocked(oldID, newID)
	s.users[newID] = u
	return u
}

// Downgrade replaces a stable identity with a fresh anonymous one. The
// outgoing editor flag is remembered against the stable identity, locks and
// in-flight state move to the new id, and the surviving entry is forced back
// to an anonymous viewer. If the outgoing user owned the session, ownership
// passes to the earliest remaining joiner, excluding the downgraded id.
func (s *Session) Downgrade(oldID, newID string, conn model.Conn) *model.User {
	if oldID == "" || newID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[oldID]
	if !ok {
		u = s.newUserLocked(oldID, "")
		s.users[oldID] = u
	}

	wasOwner := u.SessionRole == model.RoleOwner
	if stable, ok := model.ParseIdentity(oldID).Stable(); ok {
		s.editorGrants[stable] = u.SessionRole == model.RoleEditor
	}

	s.transferLocksLocked(oldID, newID)
	delete(s.users, oldID)

	u.UserID = newID
	u.Name = model.DefaultName
	u.GlobalRole = model.GlobalUser
	u.SessionRole = model.RoleViewer
	if conn != nil {
		u.Conn = conn
	}

	s.transferPendingLocked(oldID, newID)
	s.users[newID] = u

	if wasOwner {
		s.reassignOwnerLocked(newID)
	}
	return u
}

// Remove deletes a user, releasing every element lock they held. If they
// owned the session, ownership passes to the earliest remaining joiner.
// Returns the removed user, or nil if absent.
func (s *Session) Remove(userID string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	s.releaseLocksLocked(userID)
	wasOwner := u.SessionRole == model.RoleOwner
	delete(s.users, userID)
	if wasOwner {
		s.reassignOwnerLocked("")
	}
	return u
}

// Kick removes target on behalf of actor. It is a no-op unless the
// permission policy allows the kick (admins and owners are untouchable).
// Returns the kicked user so the caller can notify and close the transport.
func (s *Session) Kick(actorID, targetID string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor := s.users[actorID]
	target := s.users[targetID]
	if actor == nil || target == nil {
		return nil
	}
	if !permission.CanKick(actor, target) {
		return nil
	}

	s.releaseLocksLocked(targetID)
	wasOwner := target.SessionRole == model.RoleOwner
	delete(s.users, targetID)
	if wasOwner {
		s.reassignOwnerLocked("")
	}
	return target
}

// MakeEditor grants editor rights to target if actor may manage the session.
// Owners and admins are never re-ranked. The grant is remembered against the
// target's stable identity, if it has one.
func (s *Session) MakeEditor(actorID, targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor := s.users[actorID]
	target := s.users[targetID]
	if actor == nil || target == nil || !permission.CanManageOthers(actor) {
		return false
	}
	if permission.IsAdmin(target) || permission.IsOwner(target) {
		return false
	}
	target.SessionRole = model.RoleEditor
	if stable, ok := model.ParseIdentity(targetID).Stable(); ok {
		s.editorGrants[stable] = true
	}
	return true
}

// RemoveEditor revokes editor rights from target if actor may manage the
// session. A no-op unless target currently holds the editor role.
func (s *Session) RemoveEditor(actorID, targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor := s.users[actorID]
	target := s.users[targetID]
	if actor == nil || target == nil || !permission.CanManageOthers(actor) {
		return false
	}
	if target.SessionRole != model.RoleEditor {
		return false
	}
	target.SessionRole = model.RoleViewer
	if stable, ok := model.ParseIdentity(targetID).Stable(); ok {
		s.editorGrants[stable] = false
	}
	return true
}

func (s *Session) newUserLocked(userID, name string) *model.User {
	if name == "" {
		name = model.DefaultName
	}
	u := &model.User{
		UserID:      userID,
		Name:        name,
		Color:       model.ColorFromUserID(userID),
		GlobalRole:  model.GlobalUser,
		SessionRole: model.RoleViewer,
		JoinOrder:   s.nextJoinOrder,
	}
	s.nextJoinOrder++
	return u
}

// restoreEditorGrantLocked re-applies a remembered editor flag for the
// user's stable identity. Owners keep their role regardless.
func (s *Session) restoreEditorGrantLocked(u *model.User) {
	stable, ok := model.ParseIdentity(u.UserID).Stable()
	if !ok || u.SessionRole == model.RoleOwner {
		return
	}
	granted, ok := s.editorGrants[stable]
	if !ok {
		return
	}
	if granted {
		u.SessionRole = model.RoleEditor
	} else {
		u.SessionRole = model.RoleViewer
	}
}

func (s *Session) hasOwnerLocked() bool {
	for _, u := range s.users {
		if u.SessionRole == model.RoleOwner {
			return true
		}
	}
	return false
}

// reassignOwnerLocked promotes the remaining user with the smallest join
// order, optionally excluding one id from candidacy. A no-op when an owner
// exists or no candidates remain.
func (s *Session) reassignOwnerLocked(exclude string) {
	if s.hasOwnerLocked() {
		return
	}
	var candidate *model.User
	for _, u := range s.users {
		if exclude != "" && u.UserID == exclude {
			continue
		}
		if candidate == nil || u.JoinOrder < candidate.JoinOrder {
			candidate = u
		}
	}
	if candidate != nil {
		candidate.SessionRole = model.RoleOwner
	}
}

func (s *Session) transferLocksLocked(fromID, toID string) {
	for _, el := range s.elements {
		if el.LockedBy == fromID {
			el.LockedBy = toID
		}
	}
}

func (s *Session) releaseLocksLocked(userID string) {
	for _, el := range s.elements {
		if el.LockedBy == userID {
			el.LockedBy = ""
		}
	}
}

func (s *Session) transferPendingLocked(fromID, toID string) {
	for id, pm := range s.pendingMoves {
		if pm.userID == fromID {
			pm.userID = toID
			s.pendingMoves[id] = pm
		}
	}
	if old, ok := s.pendingResizes[fromID]; ok {
		delete(s.pendingResizes, fromID)
		merged := s.pendingResizes[toID]
		if merged == nil {
			merged = make(map[int64]model.ElementSnapshot)
		}
		for id, snap := range old {
			merged[id] = snap
		}
		s.pendingResizes[toID] = merged
	}
}
