// Package ghsync pulls a project's tracked GitHub branch into the project and
// records each pull as a version.
package ghsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adorable-dev/adorable/internal/auth"
	"github.com/adorable-dev/adorable/internal/project"
)

// ErrNotConnected is returned for projects without a GitHub repository.
var ErrNotConnected = errors.New("project is not connected to a github repository")

// GitHub is the subset of the GitHub client the syncer uses.
type GitHub interface {
	GetBranchHead(ctx context.Context, token, fullName, branch string) (string, error)
	FetchTree(ctx context.Context, token, fullName, sha string) (map[string]string, error)
}

// UserLookup loads the project owner whose token authenticates the pull.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error)
}

// Versioner records the project's current files as a version.
type Versioner interface {
	CommitVersion(ctx context.Context, p *project.Project, message string) (string, error)
}

// Result describes a completed pull.
type Result struct {
	SHA        string
	Files      int
	VersionSHA string
	Skipped    bool
}

// Syncer pulls GitHub trees into projects.
type Syncer struct {
	github   GitHub
	users    UserLookup
	projects project.Repository
	versions Versioner
	now      func() time.Time
}

// NewSyncer creates a Syncer.
func NewSyncer(gh GitHub, users UserLookup, projects project.Repository, versions Versioner) *Syncer {
	return &Syncer{github: gh, users: users, projects: projects, versions: versions, now: time.Now}
}

func (s *Syncer) token(ctx context.Context, p *project.Project) (string, error) {
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return "", fmt.Errorf("loading project owner: %w", err)
	}
	if u.GitHubToken == nil {
		return "", nil
	}
	return *u.GitHubToken, nil
}

// Pull fetches the tree at sha, stores it as the project's files and stamps
// sha as the last synced commit, then records a version.
func (s *Syncer) Pull(ctx context.Context, p *project.Project, sha string) (*Result, error) {
	if p.GitHub.RepoFullName == nil {
		return nil, ErrNotConnected
	}
	fullName := *p.GitHub.RepoFullName

	token, err := s.token(ctx, p)
	if err != nil {
		return nil, err
	}

	files, err := s.github.FetchTree(ctx, token, fullName, sha)
	if err != nil {
		return nil, fmt.Errorf("pulling %s@%s: %w", fullName, sha, err)
	}

	now := s.now().UTC()
	if err := s.projects.RecordSync(ctx, p.ID, files, sha, now); err != nil {
		return nil, err
	}
	p.Files = files
	p.GitHub.LastSyncSHA = &sha
	p.GitHub.LastSyncedAt = &now

	short := sha
	if len(short) > 7 {
		short = short[:7]
	}
	res := &Result{SHA: sha, Files: len(files)}
	versionSHA, err := s.versions.CommitVersion(ctx, p, "Sync from GitHub "+fullName+"@"+short)
	if err != nil {
		// the files are already stored; a missing version is recoverable
		zap.S().Errorw("recording github sync version", "project_id", p.ID, "sha", sha, "error", err)
		return res, nil
	}
	res.VersionSHA = versionSHA
	return res, nil
}

// SyncIfChanged pulls the tracked branch when its head differs from the last
// synced commit.
func (s *Syncer) SyncIfChanged(ctx context.Context, p *project.Project) (*Result, error) {
	if p.GitHub.RepoFullName == nil {
		return nil, ErrNotConnected
	}

	token, err := s.token(ctx, p)
	if err != nil {
		return nil, err
	}

	head, err := s.github.GetBranchHead(ctx, token, *p.GitHub.RepoFullName, p.TrackedBranch())
	if err != nil {
		return nil, fmt.Errorf("reading branch head: %w", err)
	}
	if head == "" || head == p.LastSyncSHA() {
		return &Result{SHA: head, Skipped: true}, nil
	}
	return s.Pull(ctx, p, head)
}
