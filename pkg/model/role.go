// Package model defines the core domain types for BoardSync.
package model

import "errors"

var ErrInvalidRole = errors.New("invalid role")

// GlobalRole is an account-level role, independent of any session.
type GlobalRole int

const (
	GlobalUser  GlobalRole = iota // default account role
	GlobalAdmin                   // supersedes session role for management checks
)

func (r GlobalRole) String() string {
	switch r {
	case GlobalAdmin:
		return "admin"
	default:
		return "user"
	}
}

// Valid returns true if the role is a recognised value.
func (r GlobalRole) Valid() bool {
	return r == GlobalUser || r == GlobalAdmin
}

// ParseGlobalRole converts a string to a GlobalRole.
func ParseGlobalRole(s string) GlobalRole {
	if s == "admin" {
		return GlobalAdmin
	}
	return GlobalUser
}

// SessionRole is a user's role within a single collaboration session.
type SessionRole int

const (
	RoleViewer SessionRole = iota // read-only participant
	RoleEditor                    // may mutate elements
	RoleOwner                     // exactly one per populated session
)

func (r SessionRole) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleEditor:
		return "editor"
	default:
		return "viewer"
	}
}

// ParseSessionRole converts a string to a SessionRole.
func ParseSessionRole(s string) SessionRole {
	switch s {
	case "owner":
		return RoleOwner
	case "editor":
		return RoleEditor
	default:
		return RoleViewer
	}
}

// Valid returns true if the role is a recognised value.
func (r SessionRole) Valid() bool {
	return r >= RoleViewer && r <= RoleOwner
}
