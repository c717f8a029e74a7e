package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/api/validation"
	"github.com/adorable-dev/adorable/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type githubTokenRequest struct {
	Token *string `json:"token"`
}

type userResponse struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	GitHubConnected bool   `json:"githubConnected"`
	CreatedAt       string `json:"createdAt"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:              u.ID.String(),
		Email:           u.Email,
		Name:            u.Name,
		GitHubConnected: u.GitHubToken != nil && *u.GitHubToken != "",
		CreatedAt:       formatTime(u.CreatedAt),
	}
}

// AuthHandler handles registration, login and the caller's own profile.
type AuthHandler struct {
	svc   *auth.Service
	users auth.UserRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *auth.Service, users auth.UserRepository) *AuthHandler {
	return &AuthHandler{svc: svc, users: users}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req registerRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if validationFailed(w, r, validation.ValidateRegisterRequest(validation.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})) {
		return
	}

	u, err := h.svc.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			response.Err(w, http.StatusBadRequest, "DUPLICATE_EMAIL", "An account with this email already exists", requestID)
			return
		}
		internalError(w, r, "failed to register user", err)
		return
	}

	h.issue(w, r, u, http.StatusCreated)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	if validationFailed(w, r, validation.ValidateLoginRequest(req.Email, req.Password)) {
		return
	}

	u, err := h.svc.Login(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", requestID)
			return
		}
		internalError(w, r, "failed to log in", err)
		return
	}

	h.issue(w, r, u, http.StatusOK)
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, u *auth.User, status int) {
	token, err := h.svc.IssueToken(u)
	if err != nil {
		internalError(w, r, "failed to issue session token", err, "user_id", u.ID)
		return
	}
	response.Success(w, status, response.Body{
		"token": token,
		"user":  toUserResponse(u),
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Account no longer exists", requestID)
			return
		}
		internalError(w, r, "failed to load user", err, "user_id", userID)
		return
	}

	response.JSON(w, http.StatusOK, response.Body{"user": toUserResponse(u)})
}

// SetGitHubToken handles PUT /api/auth/me/github. A null or empty token
// disconnects GitHub.
func (h *AuthHandler) SetGitHubToken(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req githubTokenRequest
	if !decodeJSON(w, r, &req, maxBodyBytes) {
		return
	}
	token := req.Token
	if token != nil {
		trimmed := strings.TrimSpace(*token)
		token = &trimmed
		if trimmed == "" {
			token = nil
		}
	}

	if err := h.users.SetGitHubToken(r.Context(), userID, token); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Account no longer exists", requestID)
			return
		}
		internalError(w, r, "failed to store github token", err, "user_id", userID)
		return
	}

	response.Success(w, http.StatusOK, response.Body{"githubConnected": token != nil})
}
