package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apispec "github.com/adorable-dev/adorable/api"
	"github.com/adorable-dev/adorable/internal/api"
	"github.com/adorable-dev/adorable/internal/auth"
	"github.com/adorable-dev/adorable/internal/config"
	"github.com/adorable-dev/adorable/internal/figma"
	"github.com/adorable-dev/adorable/internal/ghsync"
	"github.com/adorable-dev/adorable/internal/github"
	"github.com/adorable-dev/adorable/internal/invite"
	"github.com/adorable-dev/adorable/internal/kit"
	"github.com/adorable-dev/adorable/internal/metrics"
	"github.com/adorable-dev/adorable/internal/project"
	"github.com/adorable-dev/adorable/internal/reconciler"
	"github.com/adorable-dev/adorable/internal/storage"
	"github.com/adorable-dev/adorable/internal/team"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the GitHub sync poller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply the schema or the kit migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	log := zap.S()

	db, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	pool := db.Pool()
	userRepo := auth.NewRepository(pool)
	teamRepo := team.NewRepository(pool)
	inviteRepo := invite.NewRepository(pool)
	projectRepo := project.NewRepository(pool)
	kitRepo := kit.NewRepository(pool)

	if migrate {
		if err := migrateKits(ctx, kitRepo, cfg.BuiltinKitsPath); err != nil {
			return err
		}
	}

	m := metrics.New()
	projectService := project.NewService(projectRepo, teamRepo, project.NewWorkspace(cfg.ProjectsDir))
	syncer := ghsync.NewSyncer(
		github.NewClient(cfg.GitHubAPIURL, cfg.HTTPClientTimeout),
		userRepo,
		projectRepo,
		projectService,
	)

	router := api.NewRouter(api.RouterDeps{
		DBPinger:       db,
		Version:        cfg.Version,
		OpenAPISpec:    apispec.OpenAPISpec,
		Metrics:        m,
		AuthService:    auth.NewService(userRepo, cfg.JWTSecret, cfg.JWTTTL, cfg.BcryptCost),
		UserRepo:       userRepo,
		TeamRepo:       teamRepo,
		InviteService:  invite.NewService(inviteRepo),
		ProjectRepo:    projectRepo,
		ProjectService: projectService,
		KitRepo:        kitRepo,
		KitService:     kit.NewService(kitRepo, teamRepo),
		Figma:          figma.NewClient(cfg.FigmaAPIURL, cfg.HTTPClientTimeout),
		Puller:         syncer,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("starting adorable server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.SyncInterval > 0 {
		rec := reconciler.New(projectRepo, syncer, m, cfg.SyncInterval)
		g.Go(func() error {
			rec.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		log.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
