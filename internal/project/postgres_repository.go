package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const projectColumns = `id, name, user_id, team_id, files,
	github_repo_id, github_repo_full_name, github_branch, github_last_sync_sha,
	github_sync_enabled, github_webhook_secret, github_last_synced_at,
	created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var (
		p     Project
		files []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.UserID, &p.TeamID, &files,
		&p.GitHub.RepoID, &p.GitHub.RepoFullName, &p.GitHub.Branch, &p.GitHub.LastSyncSHA,
		&p.GitHub.SyncEnabled, &p.GitHub.WebhookSecret, &p.GitHub.LastSyncedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("scanning project row: %w", err)
	}

	p.Files = Files{}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &p.Files); err != nil {
			return nil, fmt.Errorf("decoding project files: %w", err)
		}
	}
	return &p, nil
}

func encodeFiles(files Files) ([]byte, error) {
	if files == nil {
		files = Files{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("encoding project files: %w", err)
	}
	return data, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

// Create inserts a new project and populates its generated fields.
func (r *PostgresRepository) Create(ctx context.Context, p *Project) error {
	files, err := encodeFiles(p.Files)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO projects (name, user_id, team_id, files)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		p.Name, p.UserID, p.TeamID, files,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	if p.Files == nil {
		p.Files = Files{}
	}
	return nil
}

// GetByID retrieves a single project by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	return scanProject(r.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// ListVisible retrieves personal and team projects visible to userID.
func (r *PostgresRepository) ListVisible(ctx context.Context, userID uuid.UUID) ([]Project, error) {
	return r.list(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE (team_id IS NULL AND user_id = $1)
		   OR team_id IN (SELECT team_id FROM team_members WHERE user_id = $1)
		ORDER BY updated_at DESC`, userID)
}

// ListByTeam retrieves the projects owned by teamID.
func (r *PostgresRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]Project, error) {
	return r.list(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE team_id = $1
		ORDER BY updated_at DESC`, teamID)
}

// UpdateFiles replaces the project's file tree.
func (r *PostgresRepository) UpdateFiles(ctx context.Context, id uuid.UUID, files Files) error {
	data, err := encodeFiles(files)
	if err != nil {
		return err
	}
	result, err := r.pool.Exec(ctx,
		`UPDATE projects SET files = $1, updated_at = NOW() WHERE id = $2`, data, id)
	if err != nil {
		return fmt.Errorf("updating project files: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// Delete removes a project by its UUID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// AssignTeam sets team_id on a personal project owned by actorID.
func (r *PostgresRepository) AssignTeam(ctx context.Context, id, teamID, actorID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE projects SET team_id = $2, updated_at = NOW()
		WHERE id = $1 AND team_id IS NULL AND user_id = $3`,
		id, teamID, actorID)
	if err != nil {
		return fmt.Errorf("assigning project to team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// UnassignTeam clears team_id and hands the project to actorID.
func (r *PostgresRepository) UnassignTeam(ctx context.Context, id, teamID, actorID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE projects SET team_id = NULL, user_id = $3, updated_at = NOW()
		WHERE id = $1 AND team_id = $2`,
		id, teamID, actorID)
	if err != nil {
		return fmt.Errorf("unassigning project from team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// GetByGitHubRepoID retrieves the project connected to a GitHub repository.
func (r *PostgresRepository) GetByGitHubRepoID(ctx context.Context, repoID int64) (*Project, error) {
	return scanProject(r.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE github_repo_id = $1`, repoID))
}

// ConnectGitHub stores the project's GitHub link. The last synced SHA is kept
// when the repository and branch are unchanged.
func (r *PostgresRepository) ConnectGitHub(ctx context.Context, id uuid.UUID, link GitHubLink) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE projects SET
			github_last_sync_sha = CASE
				WHEN github_repo_id IS NOT DISTINCT FROM $2 AND github_branch IS NOT DISTINCT FROM $4
				THEN github_last_sync_sha ELSE NULL END,
			github_repo_id = $2,
			github_repo_full_name = $3,
			github_branch = $4,
			github_sync_enabled = $5,
			github_webhook_secret = $6,
			updated_at = NOW()
		WHERE id = $1`,
		id, link.RepoID, link.RepoFullName, link.Branch, link.SyncEnabled, link.WebhookSecret)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrRepoAlreadyConnected
		}
		return fmt.Errorf("connecting github repository: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// ListSyncEnabled retrieves every project with GitHub sync turned on.
func (r *PostgresRepository) ListSyncEnabled(ctx context.Context) ([]Project, error) {
	return r.list(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE github_sync_enabled AND github_repo_full_name IS NOT NULL
		ORDER BY github_last_synced_at ASC NULLS FIRST`)
}

// RecordSync replaces the file tree and stamps the synced commit.
func (r *PostgresRepository) RecordSync(ctx context.Context, id uuid.UUID, files Files, sha string, at time.Time) error {
	data, err := encodeFiles(files)
	if err != nil {
		return err
	}
	result, err := r.pool.Exec(ctx, `
		UPDATE projects SET
			files = $2,
			github_last_sync_sha = $3,
			github_last_synced_at = $4,
			updated_at = NOW()
		WHERE id = $1`,
		id, data, sha, at)
	if err != nil {
		return fmt.Errorf("recording github sync: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}
