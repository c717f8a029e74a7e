package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adorable-dev/adorable/internal/kit"
)

// migrateKits moves kits embedded in users.settings into the kits table and,
// when builtinPath is set, upserts the built-in kits. Both steps are
// idempotent and run on every start.
func migrateKits(ctx context.Context, kits kit.Repository, builtinPath string) error {
	log := zap.S()

	res, err := kits.MigrateLegacy(ctx)
	if err != nil {
		return fmt.Errorf("migrating legacy kits: %w", err)
	}
	if res.Migrated > 0 || res.Skipped > 0 {
		log.Infow("legacy kits migrated", "users", res.Users, "migrated", res.Migrated, "skipped", res.Skipped, "kept", res.Kept)
	}

	if builtinPath == "" {
		return nil
	}
	n, err := kit.SeedBuiltins(ctx, kits, builtinPath)
	if err != nil {
		return fmt.Errorf("seeding built-in kits: %w", err)
	}
	log.Infow("built-in kits seeded", "count", n)
	return nil
}
