package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/kit"
	"github.com/adorable-dev/adorable/internal/project"
)

// TeamResourceHandler moves projects and kits between personal and team
// ownership and lists a team's resources.
type TeamResourceHandler struct {
	projects project.Repository
	kits     kit.Repository
}

// NewTeamResourceHandler creates a new TeamResourceHandler.
func NewTeamResourceHandler(projects project.Repository, kits kit.Repository) *TeamResourceHandler {
	return &TeamResourceHandler{projects: projects, kits: kits}
}

// ListProjects handles GET /api/teams/{teamId}/projects.
func (h *TeamResourceHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetMember(r.Context())

	projects, err := h.projects.ListByTeam(r.Context(), me.TeamID)
	if err != nil {
		internalError(w, r, "failed to list team projects", err, "team_id", me.TeamID)
		return
	}

	response.JSON(w, http.StatusOK, response.Body{"projects": toProjectSummaries(projects)})
}

// AddProject handles POST /api/teams/{teamId}/projects/{projectId}.
func (h *TeamResourceHandler) AddProject(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	me := middleware.GetMember(r.Context())
	projectID, ok := uuidParam(w, r, "projectId")
	if !ok {
		return
	}

	if err := h.projects.AssignTeam(r.Context(), projectID, me.TeamID, me.UserID); err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found or not yours to move", requestID)
			return
		}
		internalError(w, r, "failed to move project into team", err, "team_id", me.TeamID, "project_id", projectID)
		return
	}

	middleware.Logger(r.Context()).Infow("project moved into team", "team_id", me.TeamID, "project_id", projectID)
	response.Success(w, http.StatusOK, nil)
}

// RemoveProject handles DELETE /api/teams/{teamId}/projects/{projectId}. The
// project moves to the caller's personal space.
func (h *TeamResourceHandler) RemoveProject(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	me := middleware.GetMember(r.Context())
	projectID, ok := uuidParam(w, r, "projectId")
	if !ok {
		return
	}

	if err := h.projects.UnassignTeam(r.Context(), projectID, me.TeamID, me.UserID); err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found in this team", requestID)
			return
		}
		internalError(w, r, "failed to move project out of team", err, "team_id", me.TeamID, "project_id", projectID)
		return
	}

	middleware.Logger(r.Context()).Infow("project moved out of team", "team_id", me.TeamID, "project_id", projectID)
	response.Success(w, http.StatusOK, nil)
}

// ListKits handles GET /api/teams/{teamId}/kits.
func (h *TeamResourceHandler) ListKits(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetMember(r.Context())

	kits, err := h.kits.ListByTeam(r.Context(), me.TeamID)
	if err != nil {
		internalError(w, r, "failed to list team kits", err, "team_id", me.TeamID)
		return
	}

	response.JSON(w, http.StatusOK, response.Body{"kits": kits})
}

// AddKit handles POST /api/teams/{teamId}/kits/{kitId}.
func (h *TeamResourceHandler) AddKit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	me := middleware.GetMember(r.Context())
	kitID, ok := kitParam(w, r)
	if !ok {
		return
	}

	if err := h.kits.AssignTeam(r.Context(), kitID, me.TeamID, me.UserID); err != nil {
		if errors.Is(err, kit.ErrKitNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Kit not found or not yours to move", requestID)
			return
		}
		internalError(w, r, "failed to move kit into team", err, "team_id", me.TeamID, "kit_id", kitID)
		return
	}

	response.Success(w, http.StatusOK, nil)
}

// RemoveKit handles DELETE /api/teams/{teamId}/kits/{kitId}. The kit moves to
// the caller's personal space.
func (h *TeamResourceHandler) RemoveKit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	me := middleware.GetMember(r.Context())
	kitID, ok := kitParam(w, r)
	if !ok {
		return
	}

	if err := h.kits.UnassignTeam(r.Context(), kitID, me.TeamID, me.UserID); err != nil {
		if errors.Is(err, kit.ErrKitNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Kit not found in this team", requestID)
			return
		}
		internalError(w, r, "failed to move kit out of team", err, "team_id", me.TeamID, "kit_id", kitID)
		return
	}

	response.Success(w, http.StatusOK, nil)
}

func kitParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "kitId")
	if id == "" || len(id) > kit.MaxIDLen {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "kitId is invalid", middleware.GetRequestID(r.Context()))
		return "", false
	}
	return id, true
}
