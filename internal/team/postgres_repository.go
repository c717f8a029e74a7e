package team

import (
	"context"
	"errors"
	"fmt"

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

const memberColumns = `m.id, m.team_id, m.user_id, m.role, u.email, u.name, m.created_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.Email, &m.Name, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("scanning team member row: %w", err)
	}
	return &m, nil
}

// CreateWithOwner inserts the team and its owner membership in one transaction.
func (r *PostgresRepository) CreateWithOwner(ctx context.Context, t *Team, ownerID uuid.UUID) (*Member, error) {
	var owner *Member
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO teams (name, slug)
			VALUES ($1, $2)
			RETURNING id, created_at, updated_at`,
			t.Name, t.Slug,
		).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateSlug
			}
			return fmt.Errorf("inserting team: %w", err)
		}

		owner, err = scanMember(tx.QueryRow(ctx, `
			WITH m AS (
				INSERT INTO team_members (team_id, user_id, role)
				VALUES ($1, $2, 'owner')
				RETURNING id, team_id, user_id, role, created_at
			)
			SELECT `+memberColumns+` FROM m JOIN users u ON u.id = m.user_id`,
			t.ID, ownerID,
		))
		if err != nil {
			return fmt.Errorf("inserting team owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return owner, nil
}

// GetByID retrieves a single team by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Team, error) {
	query := `
		SELECT id, name, slug, created_at, updated_at
		FROM teams
		WHERE id = $1`

	var t Team
	err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("querying team: %w", err)
	}

	return &t, nil
}

// SlugTaken reports whether a team other than exceptID already uses slug.
func (r *PostgresRepository) SlugTaken(ctx context.Context, slug string, exceptID uuid.UUID) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM teams WHERE slug = $1 AND id <> $2)`, slug, exceptID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("checking team slug: %w", err)
	}
	return taken, nil
}

// ListForUser retrieves every team the user belongs to with the user's role.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Summary, error) {
	query := `
		SELECT t.id, t.name, t.slug, t.created_at, t.updated_at, m.role,
		       (SELECT COUNT(*) FROM team_members c WHERE c.team_id = t.id)
		FROM teams t
		JOIN team_members m ON m.team_id = t.id AND m.user_id = $1
		ORDER BY t.created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []Summary
	for rows.Next() {
		var s Summary
		err := rows.Scan(&s.ID, &s.Name, &s.Slug, &s.CreatedAt, &s.UpdatedAt, &s.MyRole, &s.MemberCount)
		if err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		teams = append(teams, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team rows: %w", err)
	}

	if teams == nil {
		teams = []Summary{}
	}

	return teams, nil
}

// Update persists the team's name and slug.
func (r *PostgresRepository) Update(ctx context.Context, t *Team) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE teams
		SET name = $1, slug = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at`,
		t.Name, t.Slug, t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTeamNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("updating team: %w", err)
	}
	return nil
}

// Delete unassigns projects and kits from the team and deletes it. Members and
// invites go with the team through ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET team_id = NULL, updated_at = NOW() WHERE team_id = $1`, id,
		); err != nil {
			return fmt.Errorf("unassigning team projects: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE kits SET team_id = NULL, user_id = $2, updated_at = NOW() WHERE team_id = $1`, id, actorID,
		); err != nil {
			return fmt.Errorf("unassigning team kits: %w", err)
		}

		result, err := tx.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("deleting team: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrTeamNotFound
		}
		return nil
	})
}

// GetMember retrieves the membership of userID in teamID.
func (r *PostgresRepository) GetMember(ctx context.Context, teamID, userID uuid.UUID) (*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM team_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1 AND m.user_id = $2`
	return scanMember(r.pool.QueryRow(ctx, query, teamID, userID))
}

// GetMemberByID retrieves a membership row by id, scoped to teamID.
func (r *PostgresRepository) GetMemberByID(ctx context.Context, teamID, memberID uuid.UUID) (*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM team_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1 AND m.id = $2`
	return scanMember(r.pool.QueryRow(ctx, query, teamID, memberID))
}

// ListMembers retrieves the team roster, owner first.
func (r *PostgresRepository) ListMembers(ctx context.Context, teamID uuid.UUID) ([]Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM team_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1
		ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, m.created_at ASC`

	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing team members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team member rows: %w", err)
	}

	return members, nil
}

// UpdateMemberRole changes a member's role and verifies the team still has
// exactly one owner before committing.
func (r *PostgresRepository) UpdateMemberRole(ctx context.Context, teamID, memberID uuid.UUID, role Role) (*Member, error) {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`UPDATE team_members SET role = $1 WHERE team_id = $2 AND id = $3`, role, teamID, memberID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrOwnerInvariant
			}
			return fmt.Errorf("updating member role: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrMemberNotFound
		}
		return assertSingleOwner(ctx, tx, teamID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetMemberByID(ctx, teamID, memberID)
}

// RemoveMember deletes a membership row, refusing to leave the team ownerless.
func (r *PostgresRepository) RemoveMember(ctx context.Context, teamID, memberID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`DELETE FROM team_members WHERE team_id = $1 AND id = $2`, teamID, memberID)
		if err != nil {
			return fmt.Errorf("removing team member: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrMemberNotFound
		}
		return assertSingleOwner(ctx, tx, teamID)
	})
}

// TransferOwnership demotes the current owner to admin and promotes the target
// member to owner in one transaction. The demotion runs first so the partial
// unique index on owners is never violated mid-transaction.
func (r *PostgresRepository) TransferOwnership(ctx context.Context, teamID, fromUserID, toUserID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT id FROM team_members WHERE team_id = $1 AND user_id IN ($2, $3) FOR UPDATE`,
			teamID, fromUserID, toUserID,
		); err != nil {
			return fmt.Errorf("locking team members: %w", err)
		}

		result, err := tx.Exec(ctx, `
			UPDATE team_members SET role = 'admin'
			WHERE team_id = $1 AND user_id = $2 AND role = 'owner'`,
			teamID, fromUserID)
		if err != nil {
			return fmt.Errorf("demoting owner: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrOwnerInvariant
		}

		result, err = tx.Exec(ctx, `
			UPDATE team_members SET role = 'owner'
			WHERE team_id = $1 AND user_id = $2`,
			teamID, toUserID)
		if err != nil {
			return fmt.Errorf("promoting new owner: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrMemberNotFound
		}

		return assertSingleOwner(ctx, tx, teamID)
	})
}

func assertSingleOwner(ctx context.Context, tx pgx.Tx, teamID uuid.UUID) error {
	var owners int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND role = 'owner'`, teamID,
	).Scan(&owners)
	if err != nil {
		return fmt.Errorf("counting team owners: %w", err)
	}
	if owners != 1 {
		return ErrOwnerInvariant
	}
	return nil
}
