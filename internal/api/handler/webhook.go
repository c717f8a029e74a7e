package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/ghsync"
	"github.com/adorable-dev/adorable/internal/github"
	"github.com/adorable-dev/adorable/internal/project"
)

// maxWebhookBodyBytes bounds a GitHub delivery. GitHub caps payloads at 25 MB.
const maxWebhookBodyBytes = 25 << 20

// WebhookProjects finds the project connected to a GitHub repository.
type WebhookProjects interface {
	GetByGitHubRepoID(ctx context.Context, repoID int64) (*project.Project, error)
}

// Puller pulls a commit of the project's repository into the project.
type Puller interface {
	Pull(ctx context.Context, p *project.Project, sha string) (*ghsync.Result, error)
}

// WebhookRecorder counts webhook deliveries by event and outcome.
type WebhookRecorder interface {
	WebhookEvent(event, outcome string)
}

// WebhookHandler handles GitHub push deliveries.
type WebhookHandler struct {
	projects WebhookProjects
	puller   Puller
	recorder WebhookRecorder
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(projects WebhookProjects, puller Puller, recorder WebhookRecorder) *WebhookHandler {
	return &WebhookHandler{projects: projects, puller: puller, recorder: recorder}
}

// GitHub handles POST /webhooks/github. The request is authenticated by the
// HMAC signature of the raw body under the project's webhook secret.
func (h *WebhookHandler) GitHub(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	log := middleware.Logger(r.Context()).With("delivery", r.Header.Get(github.HeaderDelivery))

	signature := r.Header.Get(github.HeaderSignature)
	event := r.Header.Get(github.HeaderEvent)
	if signature == "" || event == "" {
		h.record("unknown", "bad_request")
		response.Err(w, http.StatusBadRequest, "MISSING_HEADERS",
			"X-Hub-Signature-256 and X-GitHub-Event headers are required", requestID)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.record(event, "bad_request")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Err(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Payload is too large", requestID)
			return
		}
		response.Err(w, http.StatusBadRequest, "INVALID_BODY", "Failed to read payload", requestID)
		return
	}

	if event == "ping" {
		h.record(event, "pong")
		response.Success(w, http.StatusOK, response.Body{"message": "pong"})
		return
	}
	if event != "push" {
		h.record(event, "ignored")
		response.Success(w, http.StatusOK, response.Body{"message": "Event ignored"})
		return
	}

	var push github.PushEvent
	if err := json.Unmarshal(body, &push); err != nil || push.Repository.ID == 0 {
		h.record(event, "bad_request")
		response.Err(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Payload is not a valid push event", requestID)
		return
	}

	p, err := h.projects.GetByGitHubRepoID(r.Context(), push.Repository.ID)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			h.record(event, "unknown_repo")
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "No project is connected to this repository", requestID)
			return
		}
		h.record(event, "error")
		internalError(w, r, "failed to look up webhook project", err, "repo_id", push.Repository.ID)
		return
	}

	secret := ""
	if p.GitHub.WebhookSecret != nil {
		secret = *p.GitHub.WebhookSecret
	}
	if err := github.VerifySignature(body, secret, signature); err != nil {
		h.record(event, "bad_signature")
		log.Warnw("rejected github delivery", "project_id", p.ID, "error", err)
		response.Err(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "Signature verification failed", requestID)
		return
	}

	switch {
	case !p.GitHub.SyncEnabled:
		h.record(event, "ignored")
		response.Success(w, http.StatusOK, response.Body{"message": "Sync disabled"})
		return
	case push.Branch() != p.TrackedBranch():
		h.record(event, "ignored")
		response.Success(w, http.StatusOK, response.Body{"message": "Branch not tracked"})
		return
	case push.After == "" || strings.Trim(push.After, "0") == "":
		h.record(event, "ignored")
		response.Success(w, http.StatusOK, response.Body{"message": "Branch deleted"})
		return
	case push.After == p.LastSyncSHA():
		h.record(event, "duplicate")
		response.Success(w, http.StatusOK, response.Body{"message": "Already synced"})
		return
	}

	res, err := h.puller.Pull(r.Context(), p, push.After)
	if err != nil {
		h.record(event, "error")
		internalError(w, r, "github sync failed", err, "project_id", p.ID, "sha", push.After)
		return
	}

	h.record(event, "synced")
	log.Infow("github push synced", "project_id", p.ID, "sha", res.SHA, "files", res.Files)
	response.Success(w, http.StatusOK, response.Body{
		"message": "Synced",
		"sha":     res.SHA,
		"files":   res.Files,
		"version": nullable(res.VersionSHA),
	})
}

// record counts a delivery. Unknown event names collapse to "other" to keep
// label cardinality bounded.
func (h *WebhookHandler) record(event, outcome string) {
	if h.recorder == nil {
		return
	}
	switch event {
	case "ping", "push", "unknown":
	default:
		event = "other"
	}
	h.recorder.WebhookEvent(event, outcome)
}
