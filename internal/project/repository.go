package project

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrProjectNotFound is returned when a project is absent or out of the caller's scope.
var ErrProjectNotFound = errors.New("project not found")

// ErrRepoAlreadyConnected is returned when another project already tracks the GitHub repository.
var ErrRepoAlreadyConnected = errors.New("github repository is already connected to another project")

// Repository provides operations on the projects table.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	// ListVisible returns the user's personal projects and the projects of
	// every team the user belongs to.
	ListVisible(ctx context.Context, userID uuid.UUID) ([]Project, error)
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]Project, error)
	UpdateFiles(ctx context.Context, id uuid.UUID, files Files) error
	Delete(ctx context.Context, id uuid.UUID) error

	// AssignTeam moves a personal project owned by actorID into teamID.
	AssignTeam(ctx context.Context, id, teamID, actorID uuid.UUID) error
	// UnassignTeam moves a project out of teamID to actorID's personal space.
	UnassignTeam(ctx context.Context, id, teamID, actorID uuid.UUID) error

	GetByGitHubRepoID(ctx context.Context, repoID int64) (*Project, error)
	ConnectGitHub(ctx context.Context, id uuid.UUID, link GitHubLink) error
	ListSyncEnabled(ctx context.Context) ([]Project, error)
	// RecordSync replaces the file tree and stamps the synced commit.
	RecordSync(ctx context.Context, id uuid.UUID, files Files, sha string, at time.Time) error
}
