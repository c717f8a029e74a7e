package team

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTeamNotFound is returned when a team record is not found.
var ErrTeamNotFound = errors.New("team not found")

// ErrDuplicateSlug is returned when a team with the same slug already exists.
var ErrDuplicateSlug = errors.New("team slug already exists")

// ErrMemberNotFound is returned when a membership record is not found.
var ErrMemberNotFound = errors.New("team member not found")

// ErrAlreadyMember is returned when the user already belongs to the team.
var ErrAlreadyMember = errors.New("user is already a member of this team")

// ErrOwnerInvariant is returned when a mutation would leave a team without
// exactly one owner. The transaction is rolled back.
var ErrOwnerInvariant = errors.New("team must have exactly one owner")

// Repository provides operations on the teams and team_members tables.
type Repository interface {
	CreateWithOwner(ctx context.Context, t *Team, ownerID uuid.UUID) (*Member, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Team, error)
	SlugTaken(ctx context.Context, slug string, exceptID uuid.UUID) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Summary, error)
	Update(ctx context.Context, t *Team) error
	// Delete unassigns the team's projects, hands its kits to actorID and
	// deletes the team, all in one transaction.
	Delete(ctx context.Context, id, actorID uuid.UUID) error

	GetMember(ctx context.Context, teamID, userID uuid.UUID) (*Member, error)
	GetMemberByID(ctx context.Context, teamID, memberID uuid.UUID) (*Member, error)
	ListMembers(ctx context.Context, teamID uuid.UUID) ([]Member, error)
	UpdateMemberRole(ctx context.Context, teamID, memberID uuid.UUID, role Role) (*Member, error)
	RemoveMember(ctx context.Context, teamID, memberID uuid.UUID) error
	TransferOwnership(ctx context.Context, teamID, fromUserID, toUserID uuid.UUID) error
}
