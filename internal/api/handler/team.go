package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/api/validation"
	"github.com/adorable-dev/adorable/internal/team"
)

type teamNameRequest struct {
	Name string `json:"name"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type transferOwnershipRequest struct {
	UserID string `json:"userId"`
}

type teamResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	MyRole      string `json:"myRole,omitempty"`
	MemberCount *int   `json:"memberCount,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toTeamResponse(t *team.Team, myRole team.Role) teamResponse {
	return teamResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Slug:      t.Slug,
		MyRole:    string(myRole),
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}

type memberResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	JoinedAt string `json:"joinedAt"`
}

func toMemberResponse(m *team.Member) memberResponse {
	return memberResponse{
		ID:       m.ID.String(),
		UserID:   m.UserID.String(),
		Email:    m.Email,
		Name:     m.Name,
		Role:     string(m.Role),
		JoinedAt: formatTime(m.CreatedAt),
	}
}

func toMemberResponses(members []team.Member) []memberResponse {
	items := make([]memberResponse, 0, len(members))
	for i := range members {
		items = append(items, toMemberResponse(&members[i]))
	}
	return items
}

// writeTeamError maps team errors to responses and reports whether it wrote one.
func writeTeamError(w http.ResponseWriter, r *http.Request, err error) bool {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, team.ErrTeamNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Team not found", requestID)
	case errors.Is(err, team.ErrMemberNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Member not found", requestID)
	case errors.Is(err, team.ErrNotPermitted):
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient team role", requestID)
	case errors.Is(err, team.ErrInvalidName):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestID)
	case errors.Is(err, team.ErrInvalidRole):
		response.Err(w, http.StatusBadRequest, "INVALID_ROLE", err.Error(), requestID)
	case errors.Is(err, team.ErrOwnerProtected):
		response.Err(w, http.StatusBadRequest, "OWNER_PROTECTED", err.Error(), requestID)
	case errors.Is(err, team.ErrTransferToSelf):
		response.Err(w, http.StatusBadRequest, "INVALID_TARGET", err.Error(), requestID)
	case errors.Is(err, team.ErrAlreadyMember):
		response.Err(w, http.StatusBadRequest, "ALREADY_MEMBER", err.Error(), requestID)
	case errors.Is(err, team.ErrOwnerInvariant):
		response.Err(w, http.StatusBadRequest, "OWNER_INVARIANT", err.Error(), requestID)
	case errors.Is(err, team.ErrDuplicateSlug):
		response.Err(w, http.StatusBadRequest, "DUPLICATE_SLUG", "A team with this name already exists, try again", requestID)
	default:
		return false
	}
	return true
}

// TeamHandler handles team lifecycle and membership endpoints.
type TeamHandler struct {
	svc  *team.Service
	repo team.Repository
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(svc *team.Service, repo team.Repository) *TeamHandler {
	return &TeamHandler{svc: svc, repo: repo}
}

// Create handles POST /api/teams.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req teamNameRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if validationFailed(w, r, validation.ValidateTeamName(req.Name)) {
		return
	}

	t, _, err := h.svc.Create(r.Context(), req.Name, userID)
	if err != nil {
		if writeTeamError(w, r, err) {
			return
		}
		internalError(w, r, "failed to create team", err)
		return
	}

	resp := toTeamResponse(t, team.RoleOwner)
	one := 1
	resp.MemberCount = &one
	response.Success(w, http.StatusCreated, response.Body{"team": resp})
}

// List handles GET /api/teams.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	teams, err := h.repo.ListForUser(r.Context(), userID)
	if err != nil {
		internalError(w, r, "failed to list teams", err)
		return
	}

	items := make([]teamResponse, 0, len(teams))
	for i := range teams {
		resp := toTeamResponse(&teams[i].Team, teams[i].MyRole)
		resp.MemberCount = &teams[i].MemberCount
		items = append(items, resp)
	}

	response.JSON(w, http.StatusOK, response.Body{"teams": items})
}

// Get handles GET /api/teams/{teamId}.
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTeam(r.Context())
	me := middleware.GetMember(r.Context())

	members, err := h.repo.ListMembers(r.Context(), t.ID)
	if err != nil {
		internalError(w, r, "failed to list team members", err, "team_id", t.ID)
		return
	}

	resp := toTeamResponse(t, me.Role)
	count := len(members)
	resp.MemberCount = &count
	response.JSON(w, http.StatusOK, response.Body{
		"team":    resp,
		"members": toMemberResponses(members),
	})
}

// Update handles PUT /api/teams/{teamId}.
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTeam(r.Context())
	me := middleware.GetMember(r.Context())

	var req teamNameRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if validationFailed(w, r, validation.ValidateTeamName(req.Name)) {
		return
	}

	if err := h.svc.Rename(r.Context(), t, req.Name); err != nil {
		if writeTeamError(w, r, err) {
			return
		}
		internalError(w, r, "failed to update team", err, "team_id", t.ID)
		return
	}

	response.Success(w, http.StatusOK, response.Body{"team": toTeamResponse(t, me.Role)})
}

// Delete handles DELETE /api/teams/{teamId}.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetMember(r.Context())

	if err := h.svc.Delete(r.Context(), me); err != nil {
		if writeTeamError(w, r, err) {
			return
		}
		internalError(w, r, "failed to delete team", err, "team_id", me.TeamID)
		return
	}

	middleware.Logger(r.Context()).Infow("team deleted", "team_id", me.TeamID, "user_id", me.UserID)
	response.Success(w, http.StatusOK, nil)
}

// Members handles GET /api/teams/{teamId}/members.
func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTeam(r.Context())

	members, err := h.repo.ListMembers(r.Context(), t.ID)
	if err != nil {
		internalError(w, r, "failed to list team members", err, "team_id", t.ID)
		return
	}

	response.JSON(w, http.StatusOK, response.Body{"members": toMemberResponses(members)})
}

// ChangeRole handles PUT /api/teams/{teamId}/members/{memberId}/role.
func (h *TeamHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetMember(r.Context())
	memberID, ok := uuidParam(w, r, "memberId")
	if !ok {
		return
	}

	var req changeRoleRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if validationFailed(w, r, validation.ValidateRoleChange(req.Role)) {
		return
	}

	m, err := h.svc.ChangeRole(r.Context(), me, memberID, team.Role(req.Role))
	if err != nil {
		if writeTeamError(w, r, err) {
			return
		}
		internalError(w, r, "failed to change member role", err, "team_id", me.TeamID, "member_id", memberID)
		return
	}

	response.Success(w, http.StatusOK, response.Body{"member": toMemberResponse(m)})
}

// RemoveMember handles DELETE /api/teams/{teamId}/members/{memberId}.
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetMember(r.Context())
	memberID, ok := uuidParam(w, r, "memberId")
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(r.Context(), me, memberID); err != nil {
		if writeTeamError(w, r, err) {
			return
		}
		internalError(w, r, "failed to remove member", err, "team_id", me.TeamID, "member_id", memberID)
		return
	}

	response.Success(w, http.StatusOK, nil)
}

// TransferOwnership handles POST /api/teams/{teamId}/transfer-ownership.
func (h *TeamHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetMember(r.Context())

	var req transferOwnershipRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if validationFailed(w, r, validation.ValidateTransferRequest(req.UserID)) {
		return
	}
	newOwnerID := uuid.MustParse(req.UserID)

	if err := h.svc.TransferOwnership(r.Context(), me, newOwnerID); err != nil {
		if writeTeamError(w, r, err) {
			return
		}
		internalError(w, r, "failed to transfer ownership", err, "team_id", me.TeamID)
		return
	}

	middleware.Logger(r.Context()).Infow("team ownership transferred",
		"team_id", me.TeamID, "from_user_id", me.UserID, "to_user_id", newOwnerID)
	response.Success(w, http.StatusOK, nil)
}
