package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adorable-dev/adorable/internal/kit"
	"github.com/adorable-dev/adorable/internal/storage"
)

func newMigrateCmd() *cobra.Command {
	var (
		kitsPath  string
		printOnly bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema, move legacy kits and seed built-in kits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if printOnly {
				fmt.Fprintln(cmd.OutOrStdout(), storage.Schema())
				return nil
			}

			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()
			log := zap.S()
			ctx := cmd.Context()

			db, err := storage.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
			log.Info("schema applied")

			if kitsPath == "" {
				kitsPath = cfg.BuiltinKitsPath
			}
			return migrateKits(ctx, kit.NewRepository(db.Pool()), kitsPath)
		},
	}
	cmd.Flags().StringVar(&kitsPath, "builtin-kits", "", "YAML file of built-in kits to upsert (defaults to BUILTIN_KITS_PATH)")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema and exit without connecting")
	return cmd
}
