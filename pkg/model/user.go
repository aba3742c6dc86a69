package model

import (
	"errors"
	"fmt"
)

const MaxUsernameLength = 32

// DefaultName is used when a joining client supplies no display name.
const DefaultName = "Anonymous"

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")

// Conn is the external transport handle attached to a session user. The
// session core stores it but never reads from it; sends are fire-and-forget
// and a failed send must not surface into the mutation path.
type Conn interface {
	Send(v any) error
	Close() error
}

// User is a participant in one collaboration session.
type User struct {
	UserID      string
	Name        string
	Color       string // derived from UserID once, on creation
	GlobalRole  GlobalRole
	SessionRole SessionRole
	JoinOrder   int // assigned once, never reused, survives identity changes
	CursorX     float64
	CursorY     float64
	Conn        Conn // non-owning
}

// ColorFromUserID derives a stable display color from a user id. The hash
// matches the one clients use, so both sides agree without negotiation.
func ColorFromUserID(userID string) string {
	var h int32
	for _, c := range userID {
		h = int32(c) + ((h << 5) - h)
	}
	r := (h >> 16) & 0xff
	g := (h >> 8) & 0xff
	b := h & 0xff
	return fmt.Sprintf("rgb(%d,%d,%d)", r, g, b)
}

// ValidateUsername checks that a username is 1-32 ASCII alphanumeric,
// underscore, or hyphen characters. Returns nil on success or a descriptive
// error.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}
