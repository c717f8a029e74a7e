package kit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrKitNotFound is returned when a kit is absent or out of the caller's scope.
var ErrKitNotFound = errors.New("kit not found")

// ErrDuplicateID is returned when a kit with the same id already exists.
var ErrDuplicateID = errors.New("kit id already exists")

// MigrationResult summarizes a legacy settings migration run. Skipped counts
// entries not inserted; Kept counts the subset left in settings because they
// are malformed or their id belongs to another kit owner.
type MigrationResult struct {
	Users    int
	Migrated int
	Skipped  int
	Kept     int
}

// Repository provides operations on the kits table.
type Repository interface {
	// ListVisible returns the user's kits, the kits of the user's teams and
	// every built-in kit.
	ListVisible(ctx context.Context, userID uuid.UUID) ([]Kit, error)
	GetVisible(ctx context.Context, id string, userID uuid.UUID) (*Kit, error)
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]Kit, error)
	Create(ctx context.Context, k *Kit) error
	Update(ctx context.Context, k *Kit) error
	Delete(ctx context.Context, id string) error

	// AssignTeam moves a personal kit owned by actorID into teamID.
	AssignTeam(ctx context.Context, id string, teamID, actorID uuid.UUID) error
	// UnassignTeam moves a kit out of teamID to actorID's personal space.
	UnassignTeam(ctx context.Context, id string, teamID, actorID uuid.UUID) error

	UpsertBuiltin(ctx context.Context, k *Kit) error
	// MigrateLegacy moves kits embedded in users.settings into the kits table.
	MigrateLegacy(ctx context.Context) (MigrationResult, error)
}
