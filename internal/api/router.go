package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adorable-dev/adorable/internal/api/handler"
	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/auth"
	"github.com/adorable-dev/adorable/internal/invite"
	"github.com/adorable-dev/adorable/internal/kit"
	"github.com/adorable-dev/adorable/internal/metrics"
	"github.com/adorable-dev/adorable/internal/project"
	"github.com/adorable-dev/adorable/internal/team"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger    handler.DBPinger
	Version     string
	OpenAPISpec []byte
	Metrics     *metrics.Metrics

	AuthService *auth.Service
	UserRepo    auth.UserRepository

	TeamRepo      team.Repository
	InviteService *invite.Service

	ProjectRepo    project.Repository
	ProjectService *project.Service
	KitRepo        kit.Repository
	KitService     *kit.Service

	Figma  handler.FigmaClient
	Puller handler.Puller
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.AccessLog)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	if deps.ProjectRepo != nil && deps.Puller != nil {
		webhookHandler := handler.NewWebhookHandler(deps.ProjectRepo, deps.Puller, deps.Metrics)
		r.Post("/webhooks/github", webhookHandler.GitHub)
	}

	if deps.AuthService == nil {
		return r
	}

	authHandler := handler.NewAuthHandler(deps.AuthService, deps.UserRepo)
	teamHandler := handler.NewTeamHandler(team.NewService(deps.TeamRepo), deps.TeamRepo)
	inviteHandler := handler.NewInviteHandler(deps.InviteService, deps.TeamRepo, deps.Metrics)
	resourceHandler := handler.NewTeamResourceHandler(deps.ProjectRepo, deps.KitRepo)
	projectHandler := handler.NewProjectHandler(deps.ProjectService)
	kitHandler := handler.NewKitHandler(deps.KitService)

	managers := middleware.RequireTeamRole(team.RoleOwner, team.RoleAdmin)
	ownerOnly := middleware.RequireTeamRole(team.RoleOwner)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.AuthService))

			r.Get("/auth/me", authHandler.Me)
			r.Put("/auth/me/github", authHandler.SetGitHubToken)

			r.Route("/teams", func(r chi.Router) {
				r.Post("/", teamHandler.Create)
				r.Get("/", teamHandler.List)
				r.Post("/join", inviteHandler.Join)

				r.Route("/{teamId}", func(r chi.Router) {
					r.Use(middleware.TeamMember(deps.TeamRepo))

					r.Get("/", teamHandler.Get)
					r.With(managers).Put("/", teamHandler.Update)
					r.With(ownerOnly).Delete("/", teamHandler.Delete)

					r.Get("/members", teamHandler.Members)
					r.With(ownerOnly).Put("/members/{memberId}/role", teamHandler.ChangeRole)
					r.Delete("/members/{memberId}", teamHandler.RemoveMember)
					r.With(ownerOnly).Post("/transfer-ownership", teamHandler.TransferOwnership)

					r.Group(func(r chi.Router) {
						r.Use(managers)
						r.Post("/invites", inviteHandler.Create)
						r.Get("/invites", inviteHandler.List)
						r.Delete("/invites/{inviteId}", inviteHandler.Revoke)

						r.Post("/projects/{projectId}", resourceHandler.AddProject)
						r.Delete("/projects/{projectId}", resourceHandler.RemoveProject)
						r.Post("/kits/{kitId}", resourceHandler.AddKit)
						r.Delete("/kits/{kitId}", resourceHandler.RemoveKit)
					})

					r.Get("/projects", resourceHandler.ListProjects)
					r.Get("/kits", resourceHandler.ListKits)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", projectHandler.Create)
				r.Get("/", projectHandler.List)
				r.Route("/{projectId}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Delete("/", projectHandler.Delete)
					r.Put("/files", projectHandler.UpdateFiles)
					r.Get("/versions", projectHandler.Versions)
					r.Post("/versions", projectHandler.CommitVersion)
					r.Post("/versions/{sha}/restore", projectHandler.Restore)
					r.Put("/github", projectHandler.ConnectGitHub)
				})
			})

			r.Route("/kits", func(r chi.Router) {
				r.Post("/", kitHandler.Create)
				r.Get("/", kitHandler.List)
				r.Get("/{kitId}", kitHandler.Get)
				r.Put("/{kitId}", kitHandler.Update)
				r.Delete("/{kitId}", kitHandler.Delete)
			})

			if deps.Figma != nil {
				figmaHandler := handler.NewFigmaHandler(deps.Figma)
				r.Post("/figma/frames", figmaHandler.Frames)
				r.Post("/figma/images", figmaHandler.Images)
			}
		})
	})

	return r
}
