package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	// RoleUnset marks a federated user who has not picked a role yet.
	RoleUnset    Role = ""
	RoleResident Role = "resident"
	RoleGuard    Role = "guard"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleResident, RoleGuard, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Handle       *string   `json:"handle,omitempty" db:"handle"`
	PasswordHash *string   `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	Provider     *string   `json:"provider,omitempty" db:"provider"`
	Subject      *string   `json:"-" db:"subject"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Local reports whether the user authenticates with a handle and password
// rather than through the federated provider.
func (u *User) Local() bool {
	return u.Handle != nil && u.PasswordHash != nil
}
