package kit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const kitColumns = `id, name, description, thumbnail, is_built_in, user_id, team_id, config, created_at, updated_at`

const visibleScope = `(user_id = $1
	OR team_id IN (SELECT team_id FROM team_members WHERE user_id = $1)
	OR is_built_in)`

func scanKit(row pgx.Row) (*Kit, error) {
	var r Row
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Thumbnail, &r.IsBuiltIn,
		&r.UserID, &r.TeamID, &r.Config, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKitNotFound
		}
		return nil, fmt.Errorf("scanning kit row: %w", err)
	}
	return FromRow(&r)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Kit, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing kits: %w", err)
	}
	defer rows.Close()

	kits := []Kit{}
	for rows.Next() {
		k, err := scanKit(rows)
		if err != nil {
			return nil, err
		}
		kits = append(kits, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating kit rows: %w", err)
	}
	return kits, nil
}

// ListVisible retrieves every kit in the user's scope, built-ins first.
func (r *PostgresRepository) ListVisible(ctx context.Context, userID uuid.UUID) ([]Kit, error) {
	return r.list(ctx, `
		SELECT `+kitColumns+`
		FROM kits
		WHERE `+visibleScope+`
		ORDER BY is_built_in DESC, name ASC`, userID)
}

// GetVisible retrieves a kit by id when it is in the user's scope.
func (r *PostgresRepository) GetVisible(ctx context.Context, id string, userID uuid.UUID) (*Kit, error) {
	return scanKit(r.pool.QueryRow(ctx, `
		SELECT `+kitColumns+`
		FROM kits
		WHERE id = $2 AND `+visibleScope, userID, id))
}

// ListByTeam retrieves the kits owned by teamID.
func (r *PostgresRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]Kit, error) {
	return r.list(ctx, `
		SELECT `+kitColumns+`
		FROM kits
		WHERE team_id = $1
		ORDER BY name ASC`, teamID)
}

// Create inserts a new kit.
func (r *PostgresRepository) Create(ctx context.Context, k *Kit) error {
	row, err := ToRow(k)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO kits (id, name, description, thumbnail, is_built_in, user_id, team_id, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		row.ID, row.Name, row.Description, row.Thumbnail, row.IsBuiltIn, row.UserID, row.TeamID, row.Config,
	).Scan(&k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting kit: %w", err)
	}
	k.applyDefaults()
	return nil
}

// Update persists the kit's content. Ownership columns are left alone.
func (r *PostgresRepository) Update(ctx context.Context, k *Kit) error {
	row, err := ToRow(k)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, `
		UPDATE kits
		SET name = $2, description = $3, thumbnail = $4, config = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		row.ID, row.Name, row.Description, row.Thumbnail, row.Config,
	).Scan(&k.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrKitNotFound
		}
		return fmt.Errorf("updating kit: %w", err)
	}
	return nil
}

// Delete removes a kit by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM kits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting kit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrKitNotFound
	}
	return nil
}

// AssignTeam hands a personal kit owned by actorID to teamID.
func (r *PostgresRepository) AssignTeam(ctx context.Context, id string, teamID, actorID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE kits SET team_id = $2, user_id = NULL, updated_at = NOW()
		WHERE id = $1 AND user_id = $3 AND team_id IS NULL AND NOT is_built_in`,
		id, teamID, actorID)
	if err != nil {
		return fmt.Errorf("assigning kit to team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrKitNotFound
	}
	return nil
}

// UnassignTeam hands a team kit to actorID.
func (r *PostgresRepository) UnassignTeam(ctx context.Context, id string, teamID, actorID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE kits SET team_id = NULL, user_id = $3, updated_at = NOW()
		WHERE id = $1 AND team_id = $2`,
		id, teamID, actorID)
	if err != nil {
		return fmt.Errorf("unassigning kit from team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrKitNotFound
	}
	return nil
}

// UpsertBuiltin inserts or refreshes a built-in kit.
func (r *PostgresRepository) UpsertBuiltin(ctx context.Context, k *Kit) error {
	k.IsBuiltIn = true
	k.UserID = nil
	k.TeamID = nil
	row, err := ToRow(k)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO kits (id, name, description, thumbnail, is_built_in, config)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			thumbnail = EXCLUDED.thumbnail,
			config = EXCLUDED.config,
			is_built_in = TRUE,
			user_id = NULL,
			team_id = NULL,
			updated_at = NOW()`,
		row.ID, row.Name, row.Description, row.Thumbnail, row.Config)
	if err != nil {
		return fmt.Errorf("upserting built-in kit %s: %w", k.ID, err)
	}
	return nil
}

// MigrateLegacy moves each user's settings.kits array into the kits table.
// Every user is handled in its own transaction. Migrated entries and entries
// already stored as the user's own kit are stripped from settings; malformed
// entries and ids owned by someone else stay there untouched.
func (r *PostgresRepository) MigrateLegacy(ctx context.Context) (MigrationResult, error) {
	var res MigrationResult

	rows, err := r.pool.Query(ctx, `
		SELECT id, settings->'kits'
		FROM users
		WHERE jsonb_typeof(settings->'kits') = 'array'`)
	if err != nil {
		return res, fmt.Errorf("querying legacy kits: %w", err)
	}

	type legacy struct {
		userID uuid.UUID
		kits   []byte
	}
	var pending []legacy
	for rows.Next() {
		var l legacy
		if err := rows.Scan(&l.userID, &l.kits); err != nil {
			rows.Close()
			return res, fmt.Errorf("scanning legacy kits: %w", err)
		}
		pending = append(pending, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("iterating legacy kits: %w", err)
	}

	for _, l := range pending {
		user, err := r.migrateUser(ctx, l.userID, l.kits)
		if err != nil {
			return res, err
		}
		res.Users++
		res.Migrated += user.Migrated
		res.Skipped += user.Skipped
		res.Kept += user.Kept
	}
	return res, nil
}

func (r *PostgresRepository) migrateUser(ctx context.Context, userID uuid.UUID, raw []byte) (MigrationResult, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return MigrationResult{}, fmt.Errorf("decoding legacy kits for user %s: %w", userID, err)
	}

	var res MigrationResult
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		res = MigrationResult{}
		var kept []json.RawMessage
		for _, entry := range entries {
			k, ok := decodeLegacy(entry)
			if !ok {
				zap.S().Warnw("keeping malformed legacy kit in settings", "user_id", userID, "entry", string(entry))
				res.Skipped++
				kept = append(kept, entry)
				continue
			}
			k.UserID = &userID
			k.TeamID = nil
			k.IsBuiltIn = false

			row, err := ToRow(k)
			if err != nil {
				return err
			}
			result, err := tx.Exec(ctx, `
				INSERT INTO kits (id, name, description, thumbnail, is_built_in, user_id, config)
				VALUES ($1, $2, $3, $4, FALSE, $5, $6)
				ON CONFLICT (id) DO NOTHING`,
				row.ID, row.Name, row.Description, row.Thumbnail, row.UserID, row.Config)
			if err != nil {
				return fmt.Errorf("inserting legacy kit %s: %w", row.ID, err)
			}
			if result.RowsAffected() > 0 {
				res.Migrated++
				continue
			}

			res.Skipped++
			owned, err := ownedBy(ctx, tx, row.ID, userID)
			if err != nil {
				return err
			}
			if !owned {
				zap.S().Warnw("keeping legacy kit with a conflicting id in settings", "user_id", userID, "kit_id", row.ID)
				kept = append(kept, entry)
			}
		}
		res.Kept = len(kept)

		if len(kept) == 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET settings = settings - 'kits', updated_at = NOW() WHERE id = $1`, userID,
			); err != nil {
				return fmt.Errorf("stripping legacy kits from settings: %w", err)
			}
			return nil
		}
		if len(kept) == len(entries) {
			return nil
		}

		remaining, err := json.Marshal(kept)
		if err != nil {
			return fmt.Errorf("encoding remaining legacy kits: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET settings = jsonb_set(settings, '{kits}', $2::jsonb), updated_at = NOW() WHERE id = $1`,
			userID, remaining,
		); err != nil {
			return fmt.Errorf("stripping migrated kits from settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return MigrationResult{}, err
	}
	return res, nil
}

// ownedBy reports whether kit id is a personal kit of userID.
func ownedBy(ctx context.Context, tx pgx.Tx, id string, userID uuid.UUID) (bool, error) {
	var owned bool
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(user_id = $2, FALSE) FROM kits WHERE id = $1`, id, userID,
	).Scan(&owned)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking owner of kit %s: %w", id, err)
	}
	return owned, nil
}

// decodeLegacy reads one settings entry. Entries without an id or name are
// rejected.
func decodeLegacy(raw json.RawMessage) (*Kit, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	// ownership and timestamps are assigned here, not taken from settings
	for _, key := range []string{"userId", "teamId", "isBuiltIn", "createdAt", "updatedAt"} {
		delete(fields, key)
	}
	cleaned, err := json.Marshal(fields)
	if err != nil {
		return nil, false
	}

	var k Kit
	if err := json.Unmarshal(cleaned, &k); err != nil {
		return nil, false
	}
	k.ID = strings.TrimSpace(k.ID)
	k.Name = strings.TrimSpace(k.Name)
	if k.ID == "" || k.Name == "" || len(k.ID) > MaxIDLen {
		return nil, false
	}
	return &k, true
}
