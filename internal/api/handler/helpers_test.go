package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/auth"
	"github.com/adorable-dev/adorable/internal/invite"
	"github.com/adorable-dev/adorable/internal/kit"
	"github.com/adorable-dev/adorable/internal/project"
	"github.com/adorable-dev/adorable/internal/team"
)

// --- Helpers ---

func makeChiRequest(method, path string, body []byte, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req, w
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	identity := &auth.Identity{UserID: userID, Email: "user@example.com", Name: "User"}
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

func asMember(req *http.Request, t *team.Team, m *team.Member) *http.Request {
	req = asUser(req, m.UserID)
	return req.WithContext(middleware.WithTeamMember(req.Context(), t, m))
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err, "failed to parse response body")
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := parseBody(t, w)["code"].(string)
	return code
}

func sampleTeam() *team.Team {
	now := time.Now().UTC()
	return &team.Team{ID: uuid.New(), Name: "Acme", Slug: "acme", CreatedAt: now, UpdatedAt: now}
}

func sampleMember(teamID uuid.UUID, role team.Role) *team.Member {
	return &team.Member{
		ID:        uuid.New(),
		TeamID:    teamID,
		UserID:    uuid.New(),
		Role:      role,
		Email:     string(role) + "@example.com",
		Name:      string(role),
		CreatedAt: time.Now().UTC(),
	}
}

// --- Recorder ---

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecorder() *countingRecorder {
	return &countingRecorder{counts: map[string]int{}}
}

func (c *countingRecorder) InviteRedemption(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts["invite:"+outcome]++
}

func (c *countingRecorder) WebhookEvent(event, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[event+":"+outcome]++
}

func (c *countingRecorder) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// --- Mock User Repository ---

type mockUserRepo struct {
	createFn         func(ctx context.Context, u *auth.User) error
	getByIDFn        func(ctx context.Context, id uuid.UUID) (*auth.User, error)
	getByEmailFn     func(ctx context.Context, email string) (*auth.User, error)
	setGitHubTokenFn func(ctx context.Context, id uuid.UUID, token *string) error
}

func (m *mockUserRepo) Create(ctx context.Context, u *auth.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepo) SetGitHubToken(ctx context.Context, id uuid.UUID, token *string) error {
	if m.setGitHubTokenFn != nil {
		return m.setGitHubTokenFn(ctx, id, token)
	}
	return nil
}

// --- Mock Team Repository ---

type mockTeamRepo struct {
	createWithOwnerFn   func(ctx context.Context, t *team.Team, ownerID uuid.UUID) (*team.Member, error)
	getByIDFn           func(ctx context.Context, id uuid.UUID) (*team.Team, error)
	slugTakenFn         func(ctx context.Context, slug string, exceptID uuid.UUID) (bool, error)
	listForUserFn       func(ctx context.Context, userID uuid.UUID) ([]team.Summary, error)
	updateFn            func(ctx context.Context, t *team.Team) error
	deleteFn            func(ctx context.Context, id, actorID uuid.UUID) error
	getMemberFn         func(ctx context.Context, teamID, userID uuid.UUID) (*team.Member, error)
	getMemberByIDFn     func(ctx context.Context, teamID, memberID uuid.UUID) (*team.Member, error)
	listMembersFn       func(ctx context.Context, teamID uuid.UUID) ([]team.Member, error)
	updateMemberRoleFn  func(ctx context.Context, teamID, memberID uuid.UUID, role team.Role) (*team.Member, error)
	removeMemberFn      func(ctx context.Context, teamID, memberID uuid.UUID) error
	transferOwnershipFn func(ctx context.Context, teamID, fromUserID, toUserID uuid.UUID) error
}

func (m *mockTeamRepo) CreateWithOwner(ctx context.Context, t *team.Team, ownerID uuid.UUID) (*team.Member, error) {
	if m.createWithOwnerFn != nil {
		return m.createWithOwnerFn(ctx, t, ownerID)
	}
	now := time.Now().UTC()
	t.ID = uuid.New()
	t.CreatedAt = now
	t.UpdatedAt = now
	return &team.Member{ID: uuid.New(), TeamID: t.ID, UserID: ownerID, Role: team.RoleOwner, CreatedAt: now}, nil
}

func (m *mockTeamRepo) GetByID(ctx context.Context, id uuid.UUID) (*team.Team, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, team.ErrTeamNotFound
}

func (m *mockTeamRepo) SlugTaken(ctx context.Context, slug string, exceptID uuid.UUID) (bool, error) {
	if m.slugTakenFn != nil {
		return m.slugTakenFn(ctx, slug, exceptID)
	}
	return false, nil
}

func (m *mockTeamRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]team.Summary, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return []team.Summary{}, nil
}

func (m *mockTeamRepo) Update(ctx context.Context, t *team.Team) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, t)
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockTeamRepo) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, actorID)
	}
	return nil
}

func (m *mockTeamRepo) GetMember(ctx context.Context, teamID, userID uuid.UUID) (*team.Member, error) {
	if m.getMemberFn != nil {
		return m.getMemberFn(ctx, teamID, userID)
	}
	return nil, team.ErrMemberNotFound
}

func (m *mockTeamRepo) GetMemberByID(ctx context.Context, teamID, memberID uuid.UUID) (*team.Member, error) {
	if m.getMemberByIDFn != nil {
		return m.getMemberByIDFn(ctx, teamID, memberID)
	}
	return nil, team.ErrMemberNotFound
}

func (m *mockTeamRepo) ListMembers(ctx context.Context, teamID uuid.UUID) ([]team.Member, error) {
	if m.listMembersFn != nil {
		return m.listMembersFn(ctx, teamID)
	}
	return []team.Member{}, nil
}

func (m *mockTeamRepo) UpdateMemberRole(ctx context.Context, teamID, memberID uuid.UUID, role team.Role) (*team.Member, error) {
	if m.updateMemberRoleFn != nil {
		return m.updateMemberRoleFn(ctx, teamID, memberID, role)
	}
	return &team.Member{ID: memberID, TeamID: teamID, Role: role, CreatedAt: time.Now().UTC()}, nil
}

func (m *mockTeamRepo) RemoveMember(ctx context.Context, teamID, memberID uuid.UUID) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(ctx, teamID, memberID)
	}
	return nil
}

func (m *mockTeamRepo) TransferOwnership(ctx context.Context, teamID, fromUserID, toUserID uuid.UUID) error {
	if m.transferOwnershipFn != nil {
		return m.transferOwnershipFn(ctx, teamID, fromUserID, toUserID)
	}
	return nil
}

// --- Mock Invite Repository ---

type mockInviteRepo struct {
	createFn     func(ctx context.Context, inv *invite.Invite) error
	getByIDFn    func(ctx context.Context, teamID, id uuid.UUID) (*invite.Invite, error)
	listByTeamFn func(ctx context.Context, teamID uuid.UUID) ([]invite.Invite, error)
	revokeFn     func(ctx context.Context, teamID, id uuid.UUID, at time.Time) error
	redeemFn     func(ctx context.Context, code string, userID uuid.UUID, email string, now time.Time) (*team.Member, *invite.Invite, error)
}

func (m *mockInviteRepo) Create(ctx context.Context, inv *invite.Invite) error {
	if m.createFn != nil {
		return m.createFn(ctx, inv)
	}
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockInviteRepo) GetByID(ctx context.Context, teamID, id uuid.UUID) (*invite.Invite, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, teamID, id)
	}
	return nil, invite.ErrInviteNotFound
}

func (m *mockInviteRepo) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]invite.Invite, error) {
	if m.listByTeamFn != nil {
		return m.listByTeamFn(ctx, teamID)
	}
	return []invite.Invite{}, nil
}

func (m *mockInviteRepo) Revoke(ctx context.Context, teamID, id uuid.UUID, at time.Time) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, teamID, id, at)
	}
	return nil
}

func (m *mockInviteRepo) Redeem(ctx context.Context, code string, userID uuid.UUID, email string, now time.Time) (*team.Member, *invite.Invite, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, code, userID, email, now)
	}
	return nil, nil, invite.ErrInviteNotFound
}

// --- Mock Project Repository ---

type mockProjectRepo struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*project.Project

	listVisibleFn       func(ctx context.Context, userID uuid.UUID) ([]project.Project, error)
	listByTeamFn        func(ctx context.Context, teamID uuid.UUID) ([]project.Project, error)
	assignTeamFn        func(ctx context.Context, id, teamID, actorID uuid.UUID) error
	unassignTeamFn      func(ctx context.Context, id, teamID, actorID uuid.UUID) error
	getByGitHubRepoIDFn func(ctx context.Context, repoID int64) (*project.Project, error)
	connectGitHubFn     func(ctx context.Context, id uuid.UUID, link project.GitHubLink) error
}

func newMockProjectRepo(projects ...*project.Project) *mockProjectRepo {
	m := &mockProjectRepo{projects: map[uuid.UUID]*project.Project{}}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *mockProjectRepo) Create(_ context.Context, p *project.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.projects[p.ID] = p
	return nil
}

func (m *mockProjectRepo) GetByID(_ context.Context, id uuid.UUID) (*project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProjectRepo) ListVisible(ctx context.Context, userID uuid.UUID) ([]project.Project, error) {
	if m.listVisibleFn != nil {
		return m.listVisibleFn(ctx, userID)
	}
	return []project.Project{}, nil
}

func (m *mockProjectRepo) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]project.Project, error) {
	if m.listByTeamFn != nil {
		return m.listByTeamFn(ctx, teamID)
	}
	return []project.Project{}, nil
}

func (m *mockProjectRepo) UpdateFiles(_ context.Context, id uuid.UUID, files project.Files) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return project.ErrProjectNotFound
	}
	p.Files = files
	return nil
}

func (m *mockProjectRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return project.ErrProjectNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *mockProjectRepo) AssignTeam(ctx context.Context, id, teamID, actorID uuid.UUID) error {
	if m.assignTeamFn != nil {
		return m.assignTeamFn(ctx, id, teamID, actorID)
	}
	return nil
}

func (m *mockProjectRepo) UnassignTeam(ctx context.Context, id, teamID, actorID uuid.UUID) error {
	if m.unassignTeamFn != nil {
		return m.unassignTeamFn(ctx, id, teamID, actorID)
	}
	return nil
}

func (m *mockProjectRepo) GetByGitHubRepoID(ctx context.Context, repoID int64) (*project.Project, error) {
	if m.getByGitHubRepoIDFn != nil {
		return m.getByGitHubRepoIDFn(ctx, repoID)
	}
	return nil, project.ErrProjectNotFound
}

func (m *mockProjectRepo) ConnectGitHub(ctx context.Context, id uuid.UUID, link project.GitHubLink) error {
	if m.connectGitHubFn != nil {
		return m.connectGitHubFn(ctx, id, link)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		p.GitHub = link
	}
	return nil
}

func (m *mockProjectRepo) ListSyncEnabled(_ context.Context) ([]project.Project, error) {
	return []project.Project{}, nil
}

func (m *mockProjectRepo) RecordSync(_ context.Context, _ uuid.UUID, _ project.Files, _ string, _ time.Time) error {
	return nil
}

// --- Mock Kit Repository ---

type mockKitRepo struct {
	listVisibleFn  func(ctx context.Context, userID uuid.UUID) ([]kit.Kit, error)
	getVisibleFn   func(ctx context.Context, id string, userID uuid.UUID) (*kit.Kit, error)
	listByTeamFn   func(ctx context.Context, teamID uuid.UUID) ([]kit.Kit, error)
	createFn       func(ctx context.Context, k *kit.Kit) error
	updateFn       func(ctx context.Context, k *kit.Kit) error
	deleteFn       func(ctx context.Context, id string) error
	assignTeamFn   func(ctx context.Context, id string, teamID, actorID uuid.UUID) error
	unassignTeamFn func(ctx context.Context, id string, teamID, actorID uuid.UUID) error
}

func (m *mockKitRepo) ListVisible(ctx context.Context, userID uuid.UUID) ([]kit.Kit, error) {
	if m.listVisibleFn != nil {
		return m.listVisibleFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockKitRepo) GetVisible(ctx context.Context, id string, userID uuid.UUID) (*kit.Kit, error) {
	if m.getVisibleFn != nil {
		return m.getVisibleFn(ctx, id, userID)
	}
	return nil, kit.ErrKitNotFound
}

func (m *mockKitRepo) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]kit.Kit, error) {
	if m.listByTeamFn != nil {
		return m.listByTeamFn(ctx, teamID)
	}
	return []kit.Kit{}, nil
}

func (m *mockKitRepo) Create(ctx context.Context, k *kit.Kit) error {
	if m.createFn != nil {
		return m.createFn(ctx, k)
	}
	k.CreatedAt = time.Now().UTC()
	k.UpdatedAt = k.CreatedAt
	return nil
}

func (m *mockKitRepo) Update(ctx context.Context, k *kit.Kit) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, k)
	}
	return nil
}

func (m *mockKitRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockKitRepo) AssignTeam(ctx context.Context, id string, teamID, actorID uuid.UUID) error {
	if m.assignTeamFn != nil {
		return m.assignTeamFn(ctx, id, teamID, actorID)
	}
	return nil
}

func (m *mockKitRepo) UnassignTeam(ctx context.Context, id string, teamID, actorID uuid.UUID) error {
	if m.unassignTeamFn != nil {
		return m.unassignTeamFn(ctx, id, teamID, actorID)
	}
	return nil
}

func (m *mockKitRepo) UpsertBuiltin(_ context.Context, _ *kit.Kit) error { return nil }

func (m *mockKitRepo) MigrateLegacy(_ context.Context) (kit.MigrationResult, error) {
	return kit.MigrationResult{}, nil
}
