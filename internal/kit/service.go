package kit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"

	"github.com/adorable-dev/adorable/internal/team"
)

// ErrReadOnly is returned when modifying a built-in kit.
var ErrReadOnly = errors.New("built-in kits are read-only")

// ErrForbidden is returned when the caller may see a kit but not change it.
var ErrForbidden = errors.New("insufficient permissions for this kit")

// ErrInvalidKit is returned when a kit is missing its name or has a bad id.
var ErrInvalidKit = errors.New("kit name is required and id must be at most 128 characters")

// MaxIDLen bounds kit ids, which may be chosen by the client.
const MaxIDLen = 128

// MemberLookup resolves a user's membership in a team.
type MemberLookup interface {
	GetMember(ctx context.Context, teamID, userID uuid.UUID) (*team.Member, error)
}

// Service applies kit ownership rules on top of a Repository.
type Service struct {
	repo    Repository
	members MemberLookup
}

// NewService creates a new kit Service.
func NewService(repo Repository, members MemberLookup) *Service {
	return &Service{repo: repo, members: members}
}

// List returns every kit visible to the user.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Kit, error) {
	return s.repo.ListVisible(ctx, userID)
}

// Get returns a kit visible to the user.
func (s *Service) Get(ctx context.Context, id string, userID uuid.UUID) (*Kit, error) {
	return s.repo.GetVisible(ctx, id, userID)
}

// Create stores a kit owned by the user, or by teamID when set. Creating a
// team kit requires owner or admin.
func (s *Service) Create(ctx context.Context, k *Kit, userID uuid.UUID, teamID *uuid.UUID) error {
	k.Name = strings.TrimSpace(k.Name)
	k.ID = strings.TrimSpace(k.ID)
	if k.ID == "" {
		k.ID = "kit-" + uuid.NewString()
	}
	if k.Name == "" || len(k.ID) > MaxIDLen {
		return ErrInvalidKit
	}

	k.IsBuiltIn = false
	if teamID != nil {
		if err := s.requireManager(ctx, *teamID, userID); err != nil {
			return err
		}
		k.TeamID = teamID
		k.UserID = nil
	} else {
		k.UserID = &userID
		k.TeamID = nil
	}
	return s.repo.Create(ctx, k)
}

// Update replaces a kit's content after checking the caller may edit it.
func (s *Service) Update(ctx context.Context, id string, userID uuid.UUID, changes *Kit) (*Kit, error) {
	k, err := s.editable(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(changes.Name)
	if name == "" {
		return nil, ErrInvalidKit
	}
	k.Name = name
	k.Description = changes.Description
	k.Thumbnail = changes.Thumbnail
	k.Template = changes.Template
	k.NpmPackages = changes.NpmPackages
	k.Resources = changes.Resources
	k.DesignTokens = changes.DesignTokens
	k.SystemPrompt = changes.SystemPrompt
	k.McpServerIDs = changes.McpServerIDs
	k.applyDefaults()

	if err := s.repo.Update(ctx, k); err != nil {
		return nil, err
	}
	return k, nil
}

// Delete removes a kit after checking the caller may edit it.
func (s *Service) Delete(ctx context.Context, id string, userID uuid.UUID) error {
	if _, err := s.editable(ctx, id, userID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) editable(ctx context.Context, id string, userID uuid.UUID) (*Kit, error) {
	k, err := s.repo.GetVisible(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	switch {
	case k.IsBuiltIn:
		return nil, ErrReadOnly
	case k.TeamID != nil:
		if err := s.requireManager(ctx, *k.TeamID, userID); err != nil {
			return nil, err
		}
	case k.UserID == nil || *k.UserID != userID:
		return nil, ErrKitNotFound
	}
	return k, nil
}

func (s *Service) requireManager(ctx context.Context, teamID, userID uuid.UUID) error {
	m, err := s.members.GetMember(ctx, teamID, userID)
	if errors.Is(err, team.ErrMemberNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if !m.Role.CanManage() {
		return ErrForbidden
	}
	return nil
}

type builtinFile struct {
	Kits []Kit `json:"kits"`
}

// LoadBuiltins reads built-in kit definitions from a YAML file.
func LoadBuiltins(path string) ([]Kit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading built-in kits: %w", err)
	}

	var f builtinFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parsing built-in kits %s: %w", path, err)
	}

	for i := range f.Kits {
		k := &f.Kits[i]
		if strings.TrimSpace(k.ID) == "" || strings.TrimSpace(k.Name) == "" || len(k.ID) > MaxIDLen {
			return nil, fmt.Errorf("built-in kit #%d: %w", i+1, ErrInvalidKit)
		}
		k.applyDefaults()
	}
	return f.Kits, nil
}

// SeedBuiltins upserts every kit defined in path and returns how many were written.
func SeedBuiltins(ctx context.Context, repo Repository, path string) (int, error) {
	kits, err := LoadBuiltins(path)
	if err != nil {
		return 0, err
	}
	for i := range kits {
		if err := repo.UpsertBuiltin(ctx, &kits[i]); err != nil {
			return i, err
		}
	}
	return len(kits), nil
}
