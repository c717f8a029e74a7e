package project

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/adorable-dev/adorable/internal/gitrepo"
	"github.com/adorable-dev/adorable/internal/team"
)

// ErrForbidden is returned when the caller can see a project but lacks the
// role to change it.
var ErrForbidden = errors.New("insufficient permissions for this project")

// ErrInvalidName is returned when a project name is empty or too long.
var ErrInvalidName = errors.New("project name must be between 1 and 255 characters")

// ErrInvalidRepository is returned when GitHub connection fields are missing.
var ErrInvalidRepository = errors.New("repoId and repoFullName (owner/name) are required")

const (
	maxNameLen      = 255
	DefaultLogLimit = 50
	MaxLogLimit     = 500
)

// MemberLookup resolves a user's membership in a team.
type MemberLookup interface {
	GetMember(ctx context.Context, teamID, userID uuid.UUID) (*team.Member, error)
}

// Service applies project access rules and drives the git-backed version
// history kept in each project's workspace.
type Service struct {
	repo    Repository
	members MemberLookup
	ws      *Workspace

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// NewService creates a new project Service.
func NewService(repo Repository, members MemberLookup, ws *Workspace) *Service {
	return &Service{
		repo:    repo,
		members: members,
		ws:      ws,
		locks:   map[uuid.UUID]*sync.Mutex{},
	}
}

// lock serializes workspace operations on one project.
func (s *Service) lock(id uuid.UUID) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Access describes what a caller may do with a project.
type Access struct {
	CanWrite  bool
	CanManage bool
}

// Authorize resolves the caller's access to p. A project the caller cannot
// see is reported as ErrProjectNotFound.
func (s *Service) Authorize(ctx context.Context, p *Project, userID uuid.UUID) (Access, error) {
	if !p.IsTeamOwned() {
		if p.UserID != userID {
			return Access{}, ErrProjectNotFound
		}
		return Access{CanWrite: true, CanManage: true}, nil
	}

	m, err := s.members.GetMember(ctx, *p.TeamID, userID)
	if errors.Is(err, team.ErrMemberNotFound) {
		return Access{}, ErrProjectNotFound
	}
	if err != nil {
		return Access{}, err
	}
	return Access{CanWrite: true, CanManage: m.Role.CanManage()}, nil
}

// Get loads a project the caller can see.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Project, Access, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Access{}, err
	}
	access, err := s.Authorize(ctx, p, userID)
	if err != nil {
		return nil, Access{}, err
	}
	return p, access, nil
}

// Create stores a new project. When teamID is set the creator must belong to
// that team.
func (s *Service) Create(ctx context.Context, name string, userID uuid.UUID, teamID *uuid.UUID, files Files) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return nil, ErrInvalidName
	}
	for path := range files {
		if err := ValidatePath(path); err != nil {
			return nil, err
		}
	}

	if teamID != nil {
		if _, err := s.members.GetMember(ctx, *teamID, userID); err != nil {
			if errors.Is(err, team.ErrMemberNotFound) {
				return nil, ErrForbidden
			}
			return nil, err
		}
	}

	p := &Project{Name: name, UserID: userID, TeamID: teamID, Files: files}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns every project visible to the user.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Project, error) {
	return s.repo.ListVisible(ctx, userID)
}

// UpdateFiles replaces the project's file tree in the database.
func (s *Service) UpdateFiles(ctx context.Context, p *Project, files Files) error {
	for path := range files {
		if err := ValidatePath(path); err != nil {
			return err
		}
	}
	if err := s.repo.UpdateFiles(ctx, p.ID, files); err != nil {
		return err
	}
	p.Files = files
	return nil
}

// Delete removes the project and its workspace. Requires manage access.
func (s *Service) Delete(ctx context.Context, p *Project, access Access) error {
	if !access.CanManage {
		return ErrForbidden
	}

	unlock := s.lock(p.ID)
	defer unlock()

	if err := s.repo.Delete(ctx, p.ID); err != nil {
		return err
	}
	return s.ws.Remove(p.ID)
}

// CommitVersion writes the stored file tree into the workspace and commits
// it. It returns "" when nothing changed since the last version.
func (s *Service) CommitVersion(ctx context.Context, p *Project, message string) (string, error) {
	unlock := s.lock(p.ID)
	defer unlock()

	dir := s.ws.Dir(p.ID)
	repo := gitrepo.Open(dir, gitrepo.TrackAll())
	if err := repo.Init(ctx); err != nil {
		return "", err
	}
	if err := WriteFiles(dir, p.Files); err != nil {
		return "", err
	}
	return repo.Commit(ctx, message)
}

// Versions returns up to limit versions, newest first.
func (s *Service) Versions(ctx context.Context, p *Project, limit int) ([]gitrepo.Version, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	unlock := s.lock(p.ID)
	defer unlock()

	return gitrepo.Open(s.ws.Dir(p.ID), gitrepo.TrackAll()).Log(ctx, limit)
}

// Restore checks out sha in the workspace, stores the restored tree and
// records the restore as a new version.
func (s *Service) Restore(ctx context.Context, p *Project, sha string) (string, error) {
	unlock := s.lock(p.ID)
	defer unlock()

	dir := s.ws.Dir(p.ID)
	repo := gitrepo.Open(dir, gitrepo.TrackAll())
	if err := repo.Checkout(ctx, sha); err != nil {
		return "", err
	}

	files, err := ReadFiles(dir)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateFiles(ctx, p.ID, files); err != nil {
		return "", err
	}
	p.Files = files

	short := sha
	if len(short) > 7 {
		short = short[:7]
	}
	return repo.Commit(ctx, "Restore version "+short)
}

// ConnectParams describes the GitHub repository a project tracks.
type ConnectParams struct {
	RepoID       int64
	RepoFullName string
	Branch       string
	SyncEnabled  bool
}

// ConnectGitHub links p to a GitHub repository. A webhook secret is generated
// on first connection and returned once; later calls return "".
func (s *Service) ConnectGitHub(ctx context.Context, p *Project, access Access, params ConnectParams) (string, error) {
	if !access.CanManage {
		return "", ErrForbidden
	}
	fullName := strings.TrimSpace(params.RepoFullName)
	if params.RepoID <= 0 || !strings.Contains(fullName, "/") {
		return "", ErrInvalidRepository
	}
	branch := strings.TrimSpace(params.Branch)
	if branch == "" {
		branch = DefaultBranch
	}

	link := GitHubLink{
		RepoID:        &params.RepoID,
		RepoFullName:  &fullName,
		Branch:        &branch,
		SyncEnabled:   params.SyncEnabled,
		WebhookSecret: p.GitHub.WebhookSecret,
	}

	var fresh string
	if link.WebhookSecret == nil {
		secret, err := generateSecret()
		if err != nil {
			return "", err
		}
		fresh = secret
		link.WebhookSecret = &secret
	}

	if err := s.repo.ConnectGitHub(ctx, p.ID, link); err != nil {
		return "", err
	}
	link.LastSyncSHA = p.GitHub.LastSyncSHA
	link.LastSyncedAt = p.GitHub.LastSyncedAt
	p.GitHub = link
	return fresh, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
