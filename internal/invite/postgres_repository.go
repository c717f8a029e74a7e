package invite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adorable-dev/adorable/internal/team"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const inviteColumns = `id, team_id, code, email, role, created_by, expires_at, used_by, used_at, revoked_at, created_at`

func scanInvite(row pgx.Row) (*Invite, error) {
	var inv Invite
	err := row.Scan(
		&inv.ID, &inv.TeamID, &inv.Code, &inv.Email, &inv.Role, &inv.CreatedBy,
		&inv.ExpiresAt, &inv.UsedBy, &inv.UsedAt, &inv.RevokedAt, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("scanning invite row: %w", err)
	}
	return &inv, nil
}

// Create inserts a new invite and populates its generated fields.
func (r *PostgresRepository) Create(ctx context.Context, inv *Invite) error {
	query := `
		INSERT INTO team_invites (team_id, code, email, role, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		inv.TeamID, inv.Code, inv.Email, inv.Role, inv.CreatedBy, inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return fmt.Errorf("inserting invite: %w", err)
	}
	return nil
}

// GetByID retrieves an invite by id, scoped to teamID.
func (r *PostgresRepository) GetByID(ctx context.Context, teamID, id uuid.UUID) (*Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM team_invites WHERE team_id = $1 AND id = $2`
	return scanInvite(r.pool.QueryRow(ctx, query, teamID, id))
}

// ListByTeam retrieves every invite of a team, newest first.
func (r *PostgresRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM team_invites WHERE team_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing invites: %w", err)
	}
	defer rows.Close()

	invites := []Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invite rows: %w", err)
	}
	return invites, nil
}

// Revoke stamps revoked_at on a pending invite. An invite that exists but was
// already used or revoked yields ErrNotPending.
func (r *PostgresRepository) Revoke(ctx context.Context, teamID, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE team_invites SET revoked_at = $3
		WHERE team_id = $1 AND id = $2 AND used_at IS NULL AND revoked_at IS NULL`,
		teamID, id, at)
	if err != nil {
		return fmt.Errorf("revoking invite: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, teamID, id); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

// Redeem runs the read-check-write sequence under a row lock on the invite,
// so concurrent redemptions of one code serialize and only the first sees it
// unused.
func (r *PostgresRepository) Redeem(ctx context.Context, code string, userID uuid.UUID, email string, now time.Time) (*team.Member, *Invite, error) {
	var (
		member *team.Member
		inv    *Invite
	)
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		inv, err = scanInvite(tx.QueryRow(ctx,
			`SELECT `+inviteColumns+` FROM team_invites WHERE code = $1 FOR UPDATE`, code))
		if err != nil {
			return err
		}

		if err := inv.CheckRedeemable(now, email); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)`,
			inv.TeamID, userID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking membership: %w", err)
		}
		if exists {
			return team.ErrAlreadyMember
		}

		var m team.Member
		err = tx.QueryRow(ctx, `
			WITH m AS (
				INSERT INTO team_members (team_id, user_id, role)
				VALUES ($1, $2, $3)
				RETURNING id, team_id, user_id, role, created_at
			)
			SELECT m.id, m.team_id, m.user_id, m.role, u.email, u.name, m.created_at
			FROM m JOIN users u ON u.id = m.user_id`,
			inv.TeamID, userID, inv.Role,
		).Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.Email, &m.Name, &m.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return team.ErrAlreadyMember
			}
			return fmt.Errorf("inserting team member: %w", err)
		}
		member = &m

		if _, err := tx.Exec(ctx,
			`UPDATE team_invites SET used_by = $2, used_at = $3 WHERE id = $1`,
			inv.ID, userID, now,
		); err != nil {
			return fmt.Errorf("marking invite used: %w", err)
		}
		inv.UsedBy = &userID
		inv.UsedAt = &now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return member, inv, nil
}
