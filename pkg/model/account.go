package model

import "time"

// Account is a registered user in the persistent store. Session users
// reference accounts only through the stable "user_<id>" identity shape;
// the collaboration core never touches accounts directly.
type Account struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash []byte     `json:"-"`
	Salt         []byte     `json:"-"`
	Role         GlobalRole `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Project is a persisted board a session may optionally be linked to.
type Project struct {
	ID        string    `json:"id"` // UUID
	OwnerID   int64     `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
