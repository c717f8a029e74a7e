package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrInvalidName is returned when a team name is empty or too long.
var ErrInvalidName = errors.New("team name must be between 1 and 100 characters")

// ErrInvalidRole is returned when a role outside admin/member is requested.
var ErrInvalidRole = errors.New("role must be \"admin\" or \"member\"")

// ErrOwnerProtected is returned when an operation targets the owner's
// membership directly. Ownership only moves through TransferOwnership.
var ErrOwnerProtected = errors.New("the owner cannot be demoted or removed; transfer ownership first")

// ErrNotPermitted is returned when the acting member's role does not allow the operation.
var ErrNotPermitted = errors.New("insufficient team role")

// ErrTransferToSelf is returned when the owner names themselves as the new owner.
var ErrTransferToSelf = errors.New("cannot transfer ownership to yourself")

const (
	maxNameLen       = 100
	maxSlugAttempts  = 1000
	maxCreateRetries = 3
)

// Service enforces the team membership rules on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates a new team Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ValidateName trims name and checks its length.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}

// Create creates a team named name owned by ownerID.
func (s *Service) Create(ctx context.Context, name string, ownerID uuid.UUID) (*Team, *Member, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, nil, err
	}

	for attempt := 0; ; attempt++ {
		slug, err := s.uniqueSlug(ctx, name, uuid.Nil)
		if err != nil {
			return nil, nil, err
		}

		t := &Team{Name: name, Slug: slug}
		owner, err := s.repo.CreateWithOwner(ctx, t, ownerID)
		if errors.Is(err, ErrDuplicateSlug) && attempt < maxCreateRetries {
			// lost a race for the slug; probe again
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return t, owner, nil
	}
}

// Rename changes the team's name and re-derives its slug.
func (s *Service) Rename(ctx context.Context, t *Team, name string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}

	slug, err := s.uniqueSlug(ctx, name, t.ID)
	if err != nil {
		return err
	}

	t.Name = name
	t.Slug = slug
	return s.repo.Update(ctx, t)
}

// Delete removes the team. Only the owner may delete it.
func (s *Service) Delete(ctx context.Context, actor *Member) error {
	if actor.Role != RoleOwner {
		return ErrNotPermitted
	}
	return s.repo.Delete(ctx, actor.TeamID, actor.UserID)
}

// ChangeRole sets the role of another member. Only the owner may change roles,
// and the owner's own membership cannot be changed this way.
func (s *Service) ChangeRole(ctx context.Context, actor *Member, memberID uuid.UUID, role Role) (*Member, error) {
	if actor.Role != RoleOwner {
		return nil, ErrNotPermitted
	}
	if role != RoleAdmin && role != RoleMember {
		return nil, ErrInvalidRole
	}

	target, err := s.repo.GetMemberByID(ctx, actor.TeamID, memberID)
	if err != nil {
		return nil, err
	}
	if target.Role == RoleOwner {
		return nil, ErrOwnerProtected
	}

	return s.repo.UpdateMemberRole(ctx, actor.TeamID, memberID, role)
}

// RemoveMember removes a member from the team. Owners and admins may remove
// any non-owner; any member may remove themselves; the owner is never removed.
func (s *Service) RemoveMember(ctx context.Context, actor *Member, memberID uuid.UUID) error {
	target, err := s.repo.GetMemberByID(ctx, actor.TeamID, memberID)
	if err != nil {
		return err
	}

	if target.Role == RoleOwner {
		return ErrOwnerProtected
	}
	if target.UserID != actor.UserID && !actor.Role.CanManage() {
		return ErrNotPermitted
	}

	return s.repo.RemoveMember(ctx, actor.TeamID, memberID)
}

// TransferOwnership makes newOwnerID the owner and demotes the acting owner to admin.
func (s *Service) TransferOwnership(ctx context.Context, actor *Member, newOwnerID uuid.UUID) error {
	if actor.Role != RoleOwner {
		return ErrNotPermitted
	}
	if newOwnerID == actor.UserID {
		return ErrTransferToSelf
	}

	if _, err := s.repo.GetMember(ctx, actor.TeamID, newOwnerID); err != nil {
		return err
	}

	return s.repo.TransferOwnership(ctx, actor.TeamID, actor.UserID, newOwnerID)
}

// uniqueSlug probes slug, slug-2, slug-3, ... until one is free. A team's own
// current slug (exceptID) does not count as taken.
func (s *Service) uniqueSlug(ctx context.Context, name string, exceptID uuid.UUID) (string, error) {
	base := Slugify(name)
	candidate := base
	for n := 2; n < maxSlugAttempts; n++ {
		taken, err := s.repo.SlugTaken(ctx, candidate, exceptID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = suffixedSlug(base, n)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}
