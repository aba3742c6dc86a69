// Package permission derives capabilities from a user's two role axes.
// All checks are pure functions of (globalRole, sessionRole); a global admin
// passes the management checks regardless of session role.
package permission

import "github.com/boardsync/boardsync/pkg/model"

// IsAdmin reports whether the user holds the global admin role.
func IsAdmin(u *model.User) bool {
	return u.GlobalRole == model.GlobalAdmin
}

// IsOwner reports whether the user owns the session.
func IsOwner(u *model.User) bool {
	return u.SessionRole == model.RoleOwner
}

// IsEditor reports whether the user may edit at editor level. The owner
// implicitly holds editor rights.
func IsEditor(u *model.User) bool {
	return u.SessionRole == model.RoleEditor || u.SessionRole == model.RoleOwner
}

// IsViewer reports whether the user is a plain viewer.
func IsViewer(u *model.User) bool {
	return u.SessionRole == model.RoleViewer
}

// CanManageOthers reports whether the user may grant roles, rename the
// session, or kick: global admins and the session owner.
func CanManageOthers(u *model.User) bool {
	return IsAdmin(u) || IsOwner(u)
}

// CanKick reports whether actor may remove target from the session.
// Admins and owners are never kickable, not even by each other.
func CanKick(actor, target *model.User) bool {
	if !CanManageOthers(actor) {
		return false
	}
	if IsAdmin(target) || IsOwner(target) {
		return false
	}
	return true
}

// CanRenameSession reports whether the user may change the project name.
func CanRenameSession(u *model.User) bool {
	return CanManageOthers(u)
}

// CanEditElements reports whether the user may mutate elements. Note the
// admin branch: a global admin whose session role is merely viewer still
// qualifies.
func CanEditElements(u *model.User) bool {
	return IsAdmin(u) || IsOwner(u) || IsEditor(u)
}
