package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adorable-dev/adorable/internal/config"
	"github.com/adorable-dev/adorable/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:           "adorable",
		Short:         "Adorable backend: teams, projects, kits and GitHub sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and installs the global logger. The returned
// func flushes the logger.
func bootstrap() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	flush := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	return cfg, flush, nil
}
