package invite

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adorable-dev/adorable/internal/team"
)

// ErrInviteNotFound is returned when no invite matches the code or id.
var ErrInviteNotFound = errors.New("invite not found")

// ErrInviteUsed is returned when the invite has already been redeemed.
var ErrInviteUsed = errors.New("invite has already been used")

// ErrInviteExpired is returned when the invite's expiry has passed.
var ErrInviteExpired = errors.New("invite has expired")

// ErrInviteRevoked is returned when the invite was revoked by a team admin.
var ErrInviteRevoked = errors.New("invite has been revoked")

// ErrEmailMismatch is returned when the invite is bound to a different email.
var ErrEmailMismatch = errors.New("invite was issued for a different email address")

// ErrDuplicateCode is returned when a generated code collides with an existing one.
var ErrDuplicateCode = errors.New("invite code already exists")

// ErrNotPending is returned when revoking an invite that is no longer pending.
var ErrNotPending = errors.New("only pending invites can be revoked")

// Repository provides operations on the team_invites table.
type Repository interface {
	Create(ctx context.Context, inv *Invite) error
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*Invite, error)
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]Invite, error)
	// Revoke stamps revoked_at on a pending invite.
	Revoke(ctx context.Context, teamID, id uuid.UUID, at time.Time) error
	// Redeem locks the invite row, validates it for the caller, inserts the
	// membership and marks the invite used, all in one transaction.
	Redeem(ctx context.Context, code string, userID uuid.UUID, email string, now time.Time) (*team.Member, *Invite, error)
}
