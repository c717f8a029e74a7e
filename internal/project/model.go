package project

import (
	"time"

	"github.com/google/uuid"
)

// DefaultBranch is tracked when a GitHub link names no branch.
const DefaultBranch = "main"

// Files maps a slash-separated relative path to file content.
type Files map[string]string

// GitHubLink holds the GitHub sync fields of a project.
type GitHubLink struct {
	RepoID        *int64
	RepoFullName  *string
	Branch        *string
	LastSyncSHA   *string
	SyncEnabled   bool
	WebhookSecret *string
	LastSyncedAt  *time.Time
}

// Project represents a row in the projects table. UserID is always the
// creator; the project is team-owned when TeamID is set.
type Project struct {
	ID        uuid.UUID
	Name      string
	UserID    uuid.UUID
	TeamID    *uuid.UUID
	Files     Files
	GitHub    GitHubLink
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTeamOwned reports whether the project belongs to a team.
func (p *Project) IsTeamOwned() bool {
	return p.TeamID != nil
}

// TrackedBranch returns the GitHub branch to sync, defaulting to main.
func (p *Project) TrackedBranch() string {
	if p.GitHub.Branch == nil || *p.GitHub.Branch == "" {
		return DefaultBranch
	}
	return *p.GitHub.Branch
}

// LastSyncSHA returns the last synced commit, or "".
func (p *Project) LastSyncSHA() string {
	if p.GitHub.LastSyncSHA == nil {
		return ""
	}
	return *p.GitHub.LastSyncSHA
}
