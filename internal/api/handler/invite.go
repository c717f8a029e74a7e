package handler

import (
	"errors"
	"net/http"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/api/validation"
	"github.com/adorable-dev/adorable/internal/invite"
	"github.com/adorable-dev/adorable/internal/team"
)

type createInviteRequest struct {
	Email          string `json:"email"`
	Role           string `json:"role"`
	ExpiresInHours *int   `json:"expiresInHours"`
}

type joinRequest struct {
	Code string `json:"code"`
}

type inviteResponse struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	Email     *string `json:"email"`
	Role      string  `json:"role"`
	State     string  `json:"state"`
	CreatedBy string  `json:"createdBy"`
	ExpiresAt *string `json:"expiresAt"`
	UsedBy    *string `json:"usedBy"`
	UsedAt    *string `json:"usedAt"`
	RevokedAt *string `json:"revokedAt"`
	CreatedAt string  `json:"createdAt"`
}

func toInviteResponse(inv *invite.Invite, state invite.State) inviteResponse {
	resp := inviteResponse{
		ID:        inv.ID.String(),
		Code:      inv.Code,
		Email:     inv.Email,
		Role:      string(inv.Role),
		State:     string(state),
		CreatedBy: inv.CreatedBy.String(),
		ExpiresAt: formatTimePtr(inv.ExpiresAt),
		UsedAt:    formatTimePtr(inv.UsedAt),
		RevokedAt: formatTimePtr(inv.RevokedAt),
		CreatedAt: formatTime(inv.CreatedAt),
	}
	if inv.UsedBy != nil {
		s := inv.UsedBy.String()
		resp.UsedBy = &s
	}
	return resp
}

// InviteRecorder counts invite redemption outcomes.
type InviteRecorder interface {
	InviteRedemption(outcome string)
}

// InviteHandler handles invite issue, listing, revocation and redemption.
type InviteHandler struct {
	svc      *invite.Service
	teams    team.Repository
	recorder InviteRecorder
}

// NewInviteHandler creates a new InviteHandler.
func NewInviteHandler(svc *invite.Service, teams team.Repository, recorder InviteRecorder) *InviteHandler {
	return &InviteHandler{svc: svc, teams: teams, recorder: recorder}
}

// Create handles POST /api/teams/{teamId}/invites.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	me := middleware.GetMember(r.Context())

	var req createInviteRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if validationFailed(w, r, validation.ValidateCreateInviteRequest(validation.CreateInviteRequest{
		Email:          req.Email,
		Role:           req.Role,
		ExpiresInHours: req.ExpiresInHours,
	})) {
		return
	}

	inv, err := h.svc.Create(r.Context(), invite.CreateParams{
		TeamID:         me.TeamID,
		CreatedBy:      me.UserID,
		Email:          req.Email,
		Role:           team.Role(req.Role),
		ExpiresInHours: req.ExpiresInHours,
	})
	if err != nil {
		switch {
		case errors.Is(err, team.ErrInvalidRole):
			response.Err(w, http.StatusBadRequest, "INVALID_ROLE", err.Error(), requestID)
		case errors.Is(err, invite.ErrInvalidExpiry):
			response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestID)
		default:
			internalError(w, r, "failed to create invite", err, "team_id", me.TeamID)
		}
		return
	}

	response.Success(w, http.StatusCreated, response.Body{"invite": toInviteResponse(inv, invite.StatePending)})
}

// List handles GET /api/teams/{teamId}/invites.
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetMember(r.Context())

	invites, err := h.svc.List(r.Context(), me.TeamID)
	if err != nil {
		internalError(w, r, "failed to list invites", err, "team_id", me.TeamID)
		return
	}

	now := h.svc.Now()
	items := make([]inviteResponse, 0, len(invites))
	for i := range invites {
		items = append(items, toInviteResponse(&invites[i], invites[i].State(now)))
	}

	response.JSON(w, http.StatusOK, response.Body{"invites": items})
}

// Revoke handles DELETE /api/teams/{teamId}/invites/{inviteId}.
func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	me := middleware.GetMember(r.Context())
	inviteID, ok := uuidParam(w, r, "inviteId")
	if !ok {
		return
	}

	if err := h.svc.Revoke(r.Context(), me.TeamID, inviteID); err != nil {
		switch {
		case errors.Is(err, invite.ErrInviteNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Invite not found", requestID)
		case errors.Is(err, invite.ErrNotPending):
			response.Err(w, http.StatusBadRequest, "INVITE_NOT_PENDING", err.Error(), requestID)
		default:
			internalError(w, r, "failed to revoke invite", err, "team_id", me.TeamID, "invite_id", inviteID)
		}
		return
	}

	response.Success(w, http.StatusOK, nil)
}

// Join handles POST /api/teams/join.
func (h *InviteHandler) Join(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
		return
	}

	var req joinRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if validationFailed(w, r, validation.ValidateJoinRequest(req.Code)) {
		return
	}

	member, _, err := h.svc.Redeem(r.Context(), req.Code, identity.UserID, identity.Email)
	if err != nil {
		outcome, status, code := redeemFailure(err)
		h.record(outcome)
		if status == http.StatusInternalServerError {
			internalError(w, r, "failed to redeem invite", err)
			return
		}
		response.Err(w, status, code, err.Error(), requestID)
		return
	}
	h.record("success")

	t, err := h.teams.GetByID(r.Context(), member.TeamID)
	if err != nil {
		internalError(w, r, "failed to load joined team", err, "team_id", member.TeamID)
		return
	}

	middleware.Logger(r.Context()).Infow("invite redeemed",
		"team_id", member.TeamID, "user_id", member.UserID, "role", member.Role)
	response.Success(w, http.StatusOK, response.Body{
		"team": toTeamResponse(t, member.Role),
		"role": string(member.Role),
	})
}

func redeemFailure(err error) (outcome string, status int, code string) {
	switch {
	case errors.Is(err, invite.ErrInviteNotFound):
		return "not_found", http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, invite.ErrInviteUsed):
		return "used", http.StatusBadRequest, "INVITE_USED"
	case errors.Is(err, invite.ErrInviteExpired):
		return "expired", http.StatusBadRequest, "INVITE_EXPIRED"
	case errors.Is(err, invite.ErrInviteRevoked):
		return "revoked", http.StatusBadRequest, "INVITE_REVOKED"
	case errors.Is(err, invite.ErrEmailMismatch):
		return "email_mismatch", http.StatusBadRequest, "EMAIL_MISMATCH"
	case errors.Is(err, team.ErrAlreadyMember):
		return "already_member", http.StatusBadRequest, "ALREADY_MEMBER"
	default:
		return "error", http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (h *InviteHandler) record(outcome string) {
	if h.recorder != nil {
		h.recorder.InviteRedemption(outcome)
	}
}
