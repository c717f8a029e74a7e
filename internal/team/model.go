package team

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's role within a team.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanManage reports whether the role may manage members, invites and resources.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Team represents a row in the teams table.
type Team struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member represents a row in the team_members table, joined with the user's
// email and name for display.
type Member struct {
	ID        uuid.UUID
	TeamID    uuid.UUID
	UserID    uuid.UUID
	Role      Role
	Email     string
	Name      string
	CreatedAt time.Time
}

// Summary is a team as seen by one of its members.
type Summary struct {
	Team
	MyRole      Role
	MemberCount int
}
