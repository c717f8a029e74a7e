package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/api/validation"
	"github.com/adorable-dev/adorable/internal/gitrepo"
	"github.com/adorable-dev/adorable/internal/project"
)

// maxFilesBodyBytes bounds requests that carry a whole project file tree.
const maxFilesBodyBytes = 25 << 20

type createProjectRequest struct {
	Name   string            `json:"name"`
	TeamID *string           `json:"teamId"`
	Files  map[string]string `json:"files"`
}

type updateFilesRequest struct {
	Files map[string]string `json:"files"`
}

type commitVersionRequest struct {
	Message string `json:"message"`
}

type connectGitHubRequest struct {
	RepoID       int64  `json:"repoId"`
	RepoFullName string `json:"repoFullName"`
	Branch       string `json:"branch"`
	SyncEnabled  *bool  `json:"syncEnabled"`
}

type githubLinkResponse struct {
	RepoID       *int64  `json:"repoId"`
	RepoFullName *string `json:"repoFullName"`
	Branch       string  `json:"branch"`
	SyncEnabled  bool    `json:"syncEnabled"`
	LastSyncSHA  *string `json:"lastSyncSha"`
	LastSyncedAt *string `json:"lastSyncedAt"`
}

type projectResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	UserID    string              `json:"userId"`
	TeamID    *string             `json:"teamId"`
	Files     map[string]string   `json:"files,omitempty"`
	GitHub    *githubLinkResponse `json:"github"`
	CreatedAt string              `json:"createdAt"`
	UpdatedAt string              `json:"updatedAt"`
}

func toProjectResponse(p *project.Project, withFiles bool) projectResponse {
	resp := projectResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		UserID:    p.UserID.String(),
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
	if p.TeamID != nil {
		s := p.TeamID.String()
		resp.TeamID = &s
	}
	if withFiles {
		resp.Files = p.Files
		if resp.Files == nil {
			resp.Files = map[string]string{}
		}
	}
	if p.GitHub.RepoID != nil {
		resp.GitHub = &githubLinkResponse{
			RepoID:       p.GitHub.RepoID,
			RepoFullName: p.GitHub.RepoFullName,
			Branch:       p.TrackedBranch(),
			SyncEnabled:  p.GitHub.SyncEnabled,
			LastSyncSHA:  p.GitHub.LastSyncSHA,
			LastSyncedAt: formatTimePtr(p.GitHub.LastSyncedAt),
		}
	}
	return resp
}

func toProjectSummaries(projects []project.Project) []projectResponse {
	items := make([]projectResponse, 0, len(projects))
	for i := range projects {
		items = append(items, toProjectResponse(&projects[i], false))
	}
	return items
}

// writeProjectError maps project errors to responses and reports whether it wrote one.
func writeProjectError(w http.ResponseWriter, r *http.Request, err error) bool {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", requestID)
	case errors.Is(err, project.ErrForbidden):
		response.Err(w, http.StatusForbidden, "FORBIDDEN", err.Error(), requestID)
	case errors.Is(err, project.ErrInvalidName), errors.Is(err, project.ErrInvalidRepository):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestID)
	case errors.Is(err, project.ErrInvalidPath):
		response.Err(w, http.StatusBadRequest, "INVALID_PATH", err.Error(), requestID)
	case errors.Is(err, project.ErrRepoAlreadyConnected):
		response.Err(w, http.StatusBadRequest, "REPO_ALREADY_CONNECTED", err.Error(), requestID)
	case errors.Is(err, gitrepo.ErrNoHistory):
		response.Err(w, http.StatusBadRequest, "NO_HISTORY", "Project has no saved versions", requestID)
	case errors.Is(err, gitrepo.ErrUnknownRevision):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Version not found", requestID)
	default:
		return false
	}
	return true
}

// ProjectHandler handles project CRUD, versions and the GitHub link.
type ProjectHandler struct {
	svc *project.Service
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(svc *project.Service) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// load resolves {projectId} to a project the caller can see.
func (h *ProjectHandler) load(w http.ResponseWriter, r *http.Request) (*project.Project, project.Access, bool) {
	userID, ok := caller(w, r)
	if !ok {
		return nil, project.Access{}, false
	}
	projectID, ok := uuidParam(w, r, "projectId")
	if !ok {
		return nil, project.Access{}, false
	}

	p, access, err := h.svc.Get(r.Context(), projectID, userID)
	if err != nil {
		if !writeProjectError(w, r, err) {
			internalError(w, r, "failed to load project", err, "project_id", projectID)
		}
		return nil, project.Access{}, false
	}
	return p, access, true
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req createProjectRequest
	if !decodeJSON(w, r, &req, maxFilesBodyBytes) {
		return
	}
	if validationFailed(w, r, validation.ValidateProjectName(req.Name)) {
		return
	}

	var teamID *uuid.UUID
	if req.TeamID != nil && *req.TeamID != "" {
		id, err := uuid.Parse(*req.TeamID)
		if err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_ID", "teamId must be a valid UUID", requestID)
			return
		}
		teamID = &id
	}

	p, err := h.svc.Create(r.Context(), req.Name, userID, teamID, req.Files)
	if err != nil {
		if writeProjectError(w, r, err) {
			return
		}
		internalError(w, r, "failed to create project", err)
		return
	}

	response.Success(w, http.StatusCreated, response.Body{"project": toProjectResponse(p, true)})
}

// List handles GET /api/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	projects, err := h.svc.List(r.Context(), userID)
	if err != nil {
		internalError(w, r, "failed to list projects", err)
		return
	}

	response.JSON(w, http.StatusOK, response.Body{"projects": toProjectSummaries(projects)})
}

// Get handles GET /api/projects/{projectId}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, access, ok := h.load(w, r)
	if !ok {
		return
	}

	response.JSON(w, http.StatusOK, response.Body{
		"project": toProjectResponse(p, true),
		"access": map[string]bool{
			"canWrite":  access.CanWrite,
			"canManage": access.CanManage,
		},
	})
}

// UpdateFiles handles PUT /api/projects/{projectId}/files.
func (h *ProjectHandler) UpdateFiles(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p, access, ok := h.load(w, r)
	if !ok {
		return
	}
	if !access.CanWrite {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", project.ErrForbidden.Error(), requestID)
		return
	}

	var req updateFilesRequest
	if !decodeJSON(w, r, &req, maxFilesBodyBytes) {
		return
	}
	if req.Files == nil {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed",
			[]validation.FieldError{{Field: "files", Message: "files is required"}}, requestID)
		return
	}

	if err := h.svc.UpdateFiles(r.Context(), p, req.Files); err != nil {
		if writeProjectError(w, r, err) {
			return
		}
		internalError(w, r, "failed to update project files", err, "project_id", p.ID)
		return
	}

	response.Success(w, http.StatusOK, response.Body{"files": len(p.Files)})
}

// Delete handles DELETE /api/projects/{projectId}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, access, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), p, access); err != nil {
		if writeProjectError(w, r, err) {
			return
		}
		internalError(w, r, "failed to delete project", err, "project_id", p.ID)
		return
	}

	response.Success(w, http.StatusOK, nil)
}

// Versions handles GET /api/projects/{projectId}/versions.
func (h *ProjectHandler) Versions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p, _, ok := h.load(w, r)
	if !ok {
		return
	}

	limit := project.DefaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Err(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", requestID)
			return
		}
		limit = n
	}

	versions, err := h.svc.Versions(r.Context(), p, limit)
	if err != nil {
		internalError(w, r, "failed to read project history", err, "project_id", p.ID)
		return
	}
	if versions == nil {
		versions = []gitrepo.Version{}
	}

	response.JSON(w, http.StatusOK, response.Body{"versions": versions})
}

// CommitVersion handles POST /api/projects/{projectId}/versions. The sha is
// null when nothing changed since the last version.
func (h *ProjectHandler) CommitVersion(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p, access, ok := h.load(w, r)
	if !ok {
		return
	}
	if !access.CanWrite {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", project.ErrForbidden.Error(), requestID)
		return
	}

	var req commitVersionRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = "Save version"
	}

	sha, err := h.svc.CommitVersion(r.Context(), p, message)
	if err != nil {
		if writeProjectError(w, r, err) {
			return
		}
		internalError(w, r, "failed to commit project version", err, "project_id", p.ID)
		return
	}

	response.Success(w, http.StatusOK, response.Body{"sha": nullable(sha)})
}

// Restore handles POST /api/projects/{projectId}/versions/{sha}/restore.
func (h *ProjectHandler) Restore(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p, access, ok := h.load(w, r)
	if !ok {
		return
	}
	if !access.CanWrite {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", project.ErrForbidden.Error(), requestID)
		return
	}

	sha := chi.URLParam(r, "sha")
	versionSHA, err := h.svc.Restore(r.Context(), p, sha)
	if err != nil {
		if writeProjectError(w, r, err) {
			return
		}
		internalError(w, r, "failed to restore project version", err, "project_id", p.ID, "sha", sha)
		return
	}

	middleware.Logger(r.Context()).Infow("project version restored", "project_id", p.ID, "sha", sha)
	response.Success(w, http.StatusOK, response.Body{
		"sha":   nullable(versionSHA),
		"files": p.Files,
	})
}

// ConnectGitHub handles PUT /api/projects/{projectId}/github. The webhook
// secret is only present in the response when it was just generated.
func (h *ProjectHandler) ConnectGitHub(w http.ResponseWriter, r *http.Request) {
	p, access, ok := h.load(w, r)
	if !ok {
		return
	}

	var req connectGitHubRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if validationFailed(w, r, validation.ValidateConnectGitHubRequest(validation.ConnectGitHubRequest{
		RepoID:       req.RepoID,
		RepoFullName: req.RepoFullName,
		Branch:       req.Branch,
	})) {
		return
	}
	syncEnabled := true
	if req.SyncEnabled != nil {
		syncEnabled = *req.SyncEnabled
	}

	secret, err := h.svc.ConnectGitHub(r.Context(), p, access, project.ConnectParams{
		RepoID:       req.RepoID,
		RepoFullName: req.RepoFullName,
		Branch:       req.Branch,
		SyncEnabled:  syncEnabled,
	})
	if err != nil {
		if writeProjectError(w, r, err) {
			return
		}
		internalError(w, r, "failed to connect github repository", err, "project_id", p.ID)
		return
	}

	body := response.Body{"project": toProjectResponse(p, false)}
	if secret != "" {
		body["webhookSecret"] = secret
	}
	response.Success(w, http.StatusOK, body)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
