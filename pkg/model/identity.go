package model

import (
	"strconv"
	"strings"
)

// authenticatedPrefix is the wire shape of a stable, account-backed user id
// (e.g. "user_42"). Anonymous ids rotate per connection and carry no prefix.
const authenticatedPrefix = "user_"

// IdentityKind distinguishes rotating anonymous ids from stable
// account-backed ids.
type IdentityKind int

const (
	IdentityAnonymous IdentityKind = iota
	IdentityAuthenticated
)

func (k IdentityKind) String() string {
	if k == IdentityAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Identity is the tagged form of a userId. Parsing of the string shape
// happens here, once, at the protocol boundary; everything downstream works
// with the tagged variant.
type Identity struct {
	Kind   IdentityKind
	UserID string
}

// AuthenticatedUserID renders the stable userId for an account.
func AuthenticatedUserID(accountID int64) string {
	return authenticatedPrefix + strconv.FormatInt(accountID, 10)
}

// ParseIdentity classifies a raw userId string.
func ParseIdentity(userID string) Identity {
	if strings.HasPrefix(userID, authenticatedPrefix) && len(userID) > len(authenticatedPrefix) {
		return Identity{Kind: IdentityAuthenticated, UserID: userID}
	}
	return Identity{Kind: IdentityAnonymous, UserID: userID}
}

// Stable returns the key under which per-account state (such as a remembered
// editor grant) may be stored, and whether one exists. Anonymous identities
// have no stable key.
func (id Identity) Stable() (string, bool) {
	if id.Kind == IdentityAuthenticated {
		return id.UserID, true
	}
	return "", false
}
