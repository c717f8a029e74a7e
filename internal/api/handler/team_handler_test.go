package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adorable-dev/adorable/internal/api/handler"
	"github.com/adorable-dev/adorable/internal/team"
)

func newTeamHandler(repo *mockTeamRepo) *handler.TeamHandler {
	return handler.NewTeamHandler(team.NewService(repo), repo)
}

// ===== POST /api/teams =====

func TestTeamCreate_Success(t *testing.T) {
	t.Parallel()

	var gotOwner uuid.UUID
	var gotSlug string
	repo := &mockTeamRepo{
		slugTakenFn: func(_ context.Context, slug string, _ uuid.UUID) (bool, error) {
			return slug == "design-crew", nil
		},
	}
	repo.createWithOwnerFn = func(_ context.Context, tm *team.Team, ownerID uuid.UUID) (*team.Member, error) {
		gotOwner = ownerID
		gotSlug = tm.Slug
		tm.ID = uuid.New()
		return &team.Member{TeamID: tm.ID, UserID: ownerID, Role: team.RoleOwner}, nil
	}
	h := newTeamHandler(repo)

	userID := uuid.New()
	req, w := makeChiRequest(http.MethodPost, "/api/teams", mustJSON(t, map[string]string{"name": "  Design Crew "}), nil)
	h.Create(w, asUser(req, userID))

	require.Equal(t, http.StatusCreated, w.Code)
	body := parseBody(t, w)
	assert.Equal(t, true, body["success"])
	tm := body["team"].(map[string]interface{})
	assert.Equal(t, "Design Crew", tm["name"])
	assert.Equal(t, "design-crew-2", tm["slug"])
	assert.Equal(t, "owner", tm["myRole"])
	assert.Equal(t, float64(1), tm["memberCount"])
	assert.Equal(t, userID, gotOwner)
	assert.Equal(t, "design-crew-2", gotSlug)
}

func TestTeamCreate_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body []byte
		code string
	}{
		{"empty name", []byte(`{"name":"   "}`), "VALIDATION_ERROR"},
		{"long name", mustJSON(t, map[string]string{"name": longName(101)}), "VALIDATION_ERROR"},
		{"bad json", []byte(`{"name":`), "INVALID_JSON"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTeamHandler(&mockTeamRepo{})
			req, w := makeChiRequest(http.MethodPost, "/api/teams", tt.body, nil)
			h.Create(w, asUser(req, uuid.New()))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestTeamCreate_Unauthenticated(t *testing.T) {
	t.Parallel()

	h := newTeamHandler(&mockTeamRepo{})
	req, w := makeChiRequest(http.MethodPost, "/api/teams", []byte(`{"name":"x"}`), nil)
	h.Create(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ===== GET /api/teams =====

func TestTeamList_IncludesRoleAndCount(t *testing.T) {
	t.Parallel()

	tm := sampleTeam()
	repo := &mockTeamRepo{
		listForUserFn: func(_ context.Context, _ uuid.UUID) ([]team.Summary, error) {
			return []team.Summary{{Team: *tm, MyRole: team.RoleAdmin, MemberCount: 3}}, nil
		},
	}
	h := newTeamHandler(repo)

	req, w := makeChiRequest(http.MethodGet, "/api/teams", nil, nil)
	h.List(w, asUser(req, uuid.New()))

	require.Equal(t, http.StatusOK, w.Code)
	teams := parseBody(t, w)["teams"].([]interface{})
	require.Len(t, teams, 1)
	first := teams[0].(map[string]interface{})
	assert.Equal(t, "admin", first["myRole"])
	assert.Equal(t, float64(3), first["memberCount"])
	assert.Equal(t, tm.ID.String(), first["id"])
}

// ===== GET /api/teams/{teamId} =====

func TestTeamGet_ReturnsRoster(t *testing.T) {
	t.Parallel()

	tm := sampleTeam()
	owner := sampleMember(tm.ID, team.RoleOwner)
	member := sampleMember(tm.ID, team.RoleMember)
	repo := &mockTeamRepo{
		listMembersFn: func(_ context.Context, _ uuid.UUID) ([]team.Member, error) {
			return []team.Member{*owner, *member}, nil
		},
	}
	h := newTeamHandler(repo)

	req, w := makeChiRequest(http.MethodGet, "/api/teams/"+tm.ID.String(), nil, nil)
	h.Get(w, asMember(req, tm, member))

	require.Equal(t, http.StatusOK, w.Code)
	body := parseBody(t, w)
	assert.Equal(t, "member", body["team"].(map[string]interface{})["myRole"])
	assert.Equal(t, float64(2), body["team"].(map[string]interface{})["memberCount"])
	members := body["members"].([]interface{})
	require.Len(t, members, 2)
	assert.Equal(t, "owner", members[0].(map[string]interface{})["role"])
	assert.Equal(t, owner.UserID.String(), members[0].(map[string]interface{})["userId"])
}

// ===== PUT /api/teams/{teamId} =====

func TestTeamUpdate_RenamesAndReslugs(t *testing.T) {
	t.Parallel()

	tm := sampleTeam()
	admin := sampleMember(tm.ID, team.RoleAdmin)
	var updated *team.Team
	repo := &mockTeamRepo{
		updateFn: func(_ context.Context, t *team.Team) error {
			updated = t
			return nil
		},
	}
	h := newTeamHandler(repo)

	req, w := makeChiRequest(http.MethodPut, "/api/teams/"+tm.ID.String(), []byte(`{"name":"Brand New"}`), nil)
	h.Update(w, asMember(req, tm, admin))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, updated)
	assert.Equal(t, "Brand New", updated.Name)
	assert.Equal(t, "brand-new", updated.Slug)
}

// ===== DELETE /api/teams/{teamId} =====

func TestTeamDelete_OwnerOnly(t *testing.T) {
	t.Parallel()

	tm := sampleTeam()
	owner := sampleMember(tm.ID, team.RoleOwner)
	admin := sampleMember(tm.ID, team.RoleAdmin)

	var deletedBy uuid.UUID
	repo := &mockTeamRepo{
		deleteFn: func(_ context.Context, _, actorID uuid.UUID) error {
			deletedBy = actorID
			return nil
		},
	}
	h := newTeamHandler(repo)

	req, w := makeChiRequest(http.MethodDelete, "/api/teams/"+tm.ID.String(), nil, nil)
	h.Delete(w, asMember(req, tm, admin))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req, w = makeChiRequest(http.MethodDelete, "/api/teams/"+tm.ID.String(), nil, nil)
	h.Delete(w, asMember(req, tm, owner))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, owner.UserID, deletedBy)
}

// ===== PUT /api/teams/{teamId}/members/{memberId}/role =====

func TestTeamChangeRole(t *testing.T) {
	t.Parallel()

	tm := sampleTeam()
	owner := sampleMember(tm.ID, team.RoleOwner)
	member := sampleMember(tm.ID, team.RoleMember)

	repo := &mockTeamRepo{
		getMemberByIDFn: func(_ context.Context, _, memberID uuid.UUID) (*team.Member, error) {
			switch memberID {
			case owner.ID:
				return owner, nil
			case member.ID:
				return member, nil
			}
			return nil, team.ErrMemberNotFound
		},
	}
	h := newTeamHandler(repo)

	tests := []struct {
		name     string
		memberID string
		body     string
		status   int
		code     string
	}{
		{"promote member", member.ID.String(), `{"role":"admin"}`, http.StatusOK, ""},
		{"owner role rejected", member.ID.String(), `{"role":"owner"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"owner is protected", owner.ID.String(), `{"role":"member"}`, http.StatusBadRequest, "OWNER_PROTECTED"},
		{"unknown member", uuid.NewString(), `{"role":"admin"}`, http.StatusNotFound, "NOT_FOUND"},
		{"bad member id", "nope", `{"role":"admin"}`, http.StatusBadRequest, "INVALID_ID"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req, w := makeChiRequest(http.MethodPut, "/role", []byte(tt.body), map[string]string{"memberId": tt.memberID})
			h.ChangeRole(w, asMember(req, tm, owner))

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, w))
			} else {
				assert.Equal(t, "admin", parseBody(t, w)["member"].(map[string]interface{})["role"])
			}
		})
	}
}

// ===== DELETE /api/teams/{teamId}/members/{memberId} =====

func TestTeamRemoveMember(t *testing.T) {
	t.Parallel()

	tm := sampleTeam()
	owner := sampleMember(tm.ID, team.RoleOwner)
	admin := sampleMember(tm.ID, team.RoleAdmin)
	alice := sampleMember(tm.ID, team.RoleMember)
	bob := sampleMember(tm.ID, team.RoleMember)
	byID := map[uuid.UUID]*team.Member{owner.ID: owner, admin.ID: admin, alice.ID: alice, bob.ID: bob}

	repo := &mockTeamRepo{
		getMemberByIDFn: func(_ context.Context, _, memberID uuid.UUID) (*team.Member, error) {
			if m, ok := byID[memberID]; ok {
				return m, nil
			}
			return nil, team.ErrMemberNotFound
		},
	}
	h := newTeamHandler(repo)

	tests := []struct {
		name   string
		actor  *team.Member
		target *team.Member
		status int
	}{
		{"admin removes member", admin, alice, http.StatusOK},
		{"member leaves", bob, bob, http.StatusOK},
		{"member cannot remove another", alice, bob, http.StatusForbidden},
		{"owner cannot be removed", admin, owner, http.StatusBadRequest},
		{"owner cannot leave", owner, owner, http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req, w := makeChiRequest(http.MethodDelete, "/members", nil, map[string]string{"memberId": tt.target.ID.String()})
			h.RemoveMember(w, asMember(req, tm, tt.actor))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

// ===== POST /api/teams/{teamId}/transfer-ownership =====

func TestTeamTransferOwnership(t *testing.T) {
	t.Parallel()

	tm := sampleTeam()
	owner := sampleMember(tm.ID, team.RoleOwner)
	admin := sampleMember(tm.ID, team.RoleAdmin)

	var from, to uuid.UUID
	repo := &mockTeamRepo{
		getMemberFn: func(_ context.Context, _, userID uuid.UUID) (*team.Member, error) {
			if userID == admin.UserID {
				return admin, nil
			}
			return nil, team.ErrMemberNotFound
		},
		transferOwnershipFn: func(_ context.Context, _, fromUserID, toUserID uuid.UUID) error {
			from, to = fromUserID, toUserID
			return nil
		},
	}
	h := newTeamHandler(repo)

	t.Run("success", func(t *testing.T) {
		req, w := makeChiRequest(http.MethodPost, "/transfer", mustJSON(t, map[string]string{"userId": admin.UserID.String()}), nil)
		h.TransferOwnership(w, asMember(req, tm, owner))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, owner.UserID, from)
		assert.Equal(t, admin.UserID, to)
	})

	t.Run("to self", func(t *testing.T) {
		req, w := makeChiRequest(http.MethodPost, "/transfer", mustJSON(t, map[string]string{"userId": owner.UserID.String()}), nil)
		h.TransferOwnership(w, asMember(req, tm, owner))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_TARGET", errorCode(t, w))
	})

	t.Run("non member target", func(t *testing.T) {
		req, w := makeChiRequest(http.MethodPost, "/transfer", mustJSON(t, map[string]string{"userId": uuid.NewString()}), nil)
		h.TransferOwnership(w, asMember(req, tm, owner))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid user id", func(t *testing.T) {
		req, w := makeChiRequest(http.MethodPost, "/transfer", []byte(`{"userId":"abc"}`), nil)
		h.TransferOwnership(w, asMember(req, tm, owner))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	})

	t.Run("admin cannot transfer", func(t *testing.T) {
		req, w := makeChiRequest(http.MethodPost, "/transfer", mustJSON(t, map[string]string{"userId": owner.UserID.String()}), nil)
		h.TransferOwnership(w, asMember(req, tm, admin))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func longName(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = 'é'
	}
	return string(b)
}
