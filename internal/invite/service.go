package invite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adorable-dev/adorable/internal/team"
)

// ErrInvalidExpiry is returned when the requested lifetime is not positive.
var ErrInvalidExpiry = errors.New("expiresInHours must be a positive number")

const maxCodeAttempts = 5

// CreateParams describes a new invite.
type CreateParams struct {
	TeamID         uuid.UUID
	CreatedBy      uuid.UUID
	Email          string
	Role           team.Role
	ExpiresInHours *int
}

// Service issues, revokes and redeems invites.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new invite Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create generates a code and stores a pending invite. Role defaults to member
// and may never be owner.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Invite, error) {
	role := p.Role
	if role == "" {
		role = team.RoleMember
	}
	if role != team.RoleAdmin && role != team.RoleMember {
		return nil, team.ErrInvalidRole
	}

	inv := &Invite{TeamID: p.TeamID, CreatedBy: p.CreatedBy, Role: role}

	if email := strings.TrimSpace(p.Email); email != "" {
		email = strings.ToLower(email)
		inv.Email = &email
	}

	if p.ExpiresInHours != nil {
		if *p.ExpiresInHours <= 0 {
			return nil, ErrInvalidExpiry
		}
		expires := s.now().UTC().Add(time.Duration(*p.ExpiresInHours) * time.Hour)
		inv.ExpiresAt = &expires
	}

	for attempt := 1; ; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		inv.Code = code

		err = s.repo.Create(ctx, inv)
		if errors.Is(err, ErrDuplicateCode) && attempt < maxCodeAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		return inv, nil
	}
}

// List returns the team's invites.
func (s *Service) List(ctx context.Context, teamID uuid.UUID) ([]Invite, error) {
	return s.repo.ListByTeam(ctx, teamID)
}

// Revoke cancels a pending invite.
func (s *Service) Revoke(ctx context.Context, teamID, id uuid.UUID) error {
	inv, err := s.repo.GetByID(ctx, teamID, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if inv.State(now) != StatePending {
		return ErrNotPending
	}
	return s.repo.Revoke(ctx, teamID, id, now)
}

// Redeem joins the caller to the invite's team.
func (s *Service) Redeem(ctx context.Context, code string, userID uuid.UUID, email string) (*team.Member, *Invite, error) {
	code = NormalizeCode(code)
	if len(code) != CodeLength {
		return nil, nil, ErrInviteNotFound
	}
	return s.repo.Redeem(ctx, code, userID, email, s.now().UTC())
}

// Now returns the service clock, used to render invite states.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}
