package model

import "time"

type Group struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	// Computed fields (not in database)
	MemberCount int          `db:"member_count" json:"member_count"`
	Permissions []Permission `db:"-" json:"permissions"`
}

// Default groups seeded at bootstrap.
const (
	GroupAdministrators = "Administrators"
	GroupUsers          = "Users"
	GroupGuests         = "Guests"
)

// DefaultGroupPermissions maps each default group to its initial grant.
var DefaultGroupPermissions = map[string]Permission{
	GroupAdministrators: PermissionFullControl,
	GroupUsers:          PermissionModify,
	GroupGuests:         PermissionRead,
}
