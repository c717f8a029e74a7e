package handler_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adorable-dev/adorable/internal/api/handler"
	"github.com/adorable-dev/adorable/internal/ghsync"
	"github.com/adorable-dev/adorable/internal/github"
	"github.com/adorable-dev/adorable/internal/project"
)

const (
	webhookSecret = "s3cret"
	repoID        = int64(987)
	headSHA       = "1111111111111111111111111111111111111111"
	syncedSHA     = "2222222222222222222222222222222222222222"
)

type mockPuller struct {
	calls  []string
	result *ghsync.Result
	err    error
}

func (m *mockPuller) Pull(_ context.Context, _ *project.Project, sha string) (*ghsync.Result, error) {
	m.calls = append(m.calls, sha)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &ghsync.Result{SHA: sha, Files: 3, VersionSHA: "abc1234"}, nil
}

func connectedProject() *project.Project {
	id := repoID
	name := "acme/site"
	branch := "main"
	secret := webhookSecret
	last := syncedSHA
	return &project.Project{
		ID:     uuid.New(),
		Name:   "Site",
		UserID: uuid.New(),
		GitHub: project.GitHubLink{
			RepoID:        &id,
			RepoFullName:  &name,
			Branch:        &branch,
			SyncEnabled:   true,
			WebhookSecret: &secret,
			LastSyncSHA:   &last,
		},
	}
}

func webhookRepo(p *project.Project) *mockProjectRepo {
	repo := newMockProjectRepo()
	repo.getByGitHubRepoIDFn = func(_ context.Context, id int64) (*project.Project, error) {
		if p != nil && id == *p.GitHub.RepoID {
			return p, nil
		}
		return nil, project.ErrProjectNotFound
	}
	return repo
}

func pushPayload(ref, after string) []byte {
	return []byte(`{"ref":"` + ref + `","before":"` + syncedSHA + `","after":"` + after +
		`","repository":{"id":987,"full_name":"acme/site"},"pusher":{"name":"octocat"}}`)
}

func webhookRequest(event string, body []byte, signature string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if event != "" {
		req.Header.Set(github.HeaderEvent, event)
	}
	if signature != "" {
		req.Header.Set(github.HeaderSignature, signature)
	}
	req.Header.Set(github.HeaderDelivery, uuid.NewString())
	return req, httptest.NewRecorder()
}

func TestWebhook_PushSyncs(t *testing.T) {
	t.Parallel()

	p := connectedProject()
	puller := &mockPuller{}
	rec := newRecorder()
	h := handler.NewWebhookHandler(webhookRepo(p), puller, rec)

	body := pushPayload("refs/heads/main", headSHA)
	req, w := webhookRequest("push", body, github.Sign(body, webhookSecret))
	h.GitHub(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := parseBody(t, w)
	assert.Equal(t, "Synced", resp["message"])
	assert.Equal(t, headSHA, resp["sha"])
	assert.Equal(t, float64(3), resp["files"])
	assert.Equal(t, "abc1234", resp["version"])
	assert.Equal(t, []string{headSHA}, puller.calls)
	assert.Equal(t, 1, rec.count("push:synced"))
}

func TestWebhook_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   string
		body    []byte
		sign    bool
		mutate  func(p *project.Project)
		status  int
		message string
		key     string
	}{
		{
			name: "ping", event: "ping", body: []byte(`{"zen":"hi"}`), sign: true,
			status: http.StatusOK, message: "pong", key: "ping:pong",
		},
		{
			name: "other events are ignored", event: "issues", body: []byte(`{}`), sign: true,
			status: http.StatusOK, message: "Event ignored", key: "other:ignored",
		},
		{
			name: "already synced", event: "push", body: pushPayload("refs/heads/main", syncedSHA), sign: true,
			status: http.StatusOK, message: "Already synced", key: "push:duplicate",
		},
		{
			name: "untracked branch", event: "push", body: pushPayload("refs/heads/feature", headSHA), sign: true,
			status: http.StatusOK, message: "Branch not tracked", key: "push:ignored",
		},
		{
			name: "tag push", event: "push", body: pushPayload("refs/tags/v1", headSHA), sign: true,
			status: http.StatusOK, message: "Branch not tracked", key: "push:ignored",
		},
		{
			name: "branch deleted", event: "push", body: pushPayload("refs/heads/main", "0000000000000000000000000000000000000000"), sign: true,
			status: http.StatusOK, message: "Branch deleted", key: "push:ignored",
		},
		{
			name: "sync disabled", event: "push", body: pushPayload("refs/heads/main", headSHA), sign: true,
			mutate: func(p *project.Project) { p.GitHub.SyncEnabled = false },
			status: http.StatusOK, message: "Sync disabled", key: "push:ignored",
		},
		{
			name: "bad signature", event: "push", body: pushPayload("refs/heads/main", headSHA), sign: false,
			status: http.StatusUnauthorized, key: "push:bad_signature",
		},
		{
			name: "no stored secret", event: "push", body: pushPayload("refs/heads/main", headSHA), sign: true,
			mutate: func(p *project.Project) { p.GitHub.WebhookSecret = nil },
			status: http.StatusUnauthorized, key: "push:bad_signature",
		},
		{
			name: "unknown repository", event: "push",
			body:   []byte(`{"ref":"refs/heads/main","after":"` + headSHA + `","repository":{"id":5}}`),
			sign:   true,
			status: http.StatusNotFound, key: "push:unknown_repo",
		},
		{
			name: "invalid payload", event: "push", body: []byte(`not json`), sign: true,
			status: http.StatusBadRequest, key: "push:bad_request",
		},
		{
			name: "missing repository", event: "push", body: []byte(`{"ref":"refs/heads/main"}`), sign: true,
			status: http.StatusBadRequest, key: "push:bad_request",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := connectedProject()
			if tt.mutate != nil {
				tt.mutate(p)
			}
			puller := &mockPuller{}
			rec := newRecorder()
			h := handler.NewWebhookHandler(webhookRepo(p), puller, rec)

			signature := "sha256=deadbeef"
			if tt.sign {
				signature = github.Sign(tt.body, webhookSecret)
			}
			req, w := webhookRequest(tt.event, tt.body, signature)
			h.GitHub(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, parseBody(t, w)["message"])
			}
			assert.Empty(t, puller.calls, "no pull expected")
			assert.Equal(t, 1, rec.count(tt.key))
		})
	}
}

func TestWebhook_MissingHeaders(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	h := handler.NewWebhookHandler(webhookRepo(nil), &mockPuller{}, rec)
	body := pushPayload("refs/heads/main", headSHA)

	req, w := webhookRequest("", body, github.Sign(body, webhookSecret))
	h.GitHub(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_HEADERS", errorCode(t, w))

	req, w = webhookRequest("push", body, "")
	h.GitHub(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 2, rec.count("unknown:bad_request"))
}

func TestWebhook_PullFailure(t *testing.T) {
	t.Parallel()

	p := connectedProject()
	rec := newRecorder()
	h := handler.NewWebhookHandler(webhookRepo(p), &mockPuller{err: errors.New("github down")}, rec)

	body := pushPayload("refs/heads/main", headSHA)
	req, w := webhookRequest("push", body, github.Sign(body, webhookSecret))
	h.GitHub(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, rec.count("push:error"))
}

func TestWebhook_NilRecorder(t *testing.T) {
	t.Parallel()

	p := connectedProject()
	h := handler.NewWebhookHandler(webhookRepo(p), &mockPuller{result: &ghsync.Result{SHA: headSHA}}, nil)

	body := pushPayload("refs/heads/main", headSHA)
	req, w := webhookRequest("push", body, github.Sign(body, webhookSecret))
	h.GitHub(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, parseBody(t, w)["version"])
}
