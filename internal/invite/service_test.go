package invite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adorable-dev/adorable/internal/team"
)

type mockRepo struct {
	createFn     func(ctx context.Context, inv *Invite) error
	getByIDFn    func(ctx context.Context, teamID, id uuid.UUID) (*Invite, error)
	listByTeamFn func(ctx context.Context, teamID uuid.UUID) ([]Invite, error)
	revokeFn     func(ctx context.Context, teamID, id uuid.UUID, at time.Time) error
	redeemFn     func(ctx context.Context, code string, userID uuid.UUID, email string, now time.Time) (*team.Member, *Invite, error)
}

func (m *mockRepo) Create(ctx context.Context, inv *Invite) error {
	if m.createFn != nil {
		return m.createFn(ctx, inv)
	}
	inv.ID = uuid.New()
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, teamID, id uuid.UUID) (*Invite, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, teamID, id)
	}
	return nil, ErrInviteNotFound
}

func (m *mockRepo) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]Invite, error) {
	if m.listByTeamFn != nil {
		return m.listByTeamFn(ctx, teamID)
	}
	return []Invite{}, nil
}

func (m *mockRepo) Revoke(ctx context.Context, teamID, id uuid.UUID, at time.Time) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, teamID, id, at)
	}
	return nil
}

func (m *mockRepo) Redeem(ctx context.Context, code string, userID uuid.UUID, email string, now time.Time) (*team.Member, *Invite, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, code, userID, email, now)
	}
	return nil, nil, ErrInviteNotFound
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	s := NewService(repo)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestCreate_Defaults(t *testing.T) {
	var stored *Invite
	svc := newTestService(&mockRepo{createFn: func(_ context.Context, inv *Invite) error {
		stored = inv
		return nil
	}})

	inv, err := svc.Create(context.Background(), CreateParams{TeamID: uuid.New(), CreatedBy: uuid.New()})
	require.NoError(t, err)

	assert.Same(t, stored, inv)
	assert.Equal(t, team.RoleMember, inv.Role)
	assert.Len(t, inv.Code, CodeLength)
	assert.Nil(t, inv.Email)
	assert.Nil(t, inv.ExpiresAt)
}

func TestCreate_EmailAndExpiry(t *testing.T) {
	svc := newTestService(&mockRepo{})
	hours := 48

	inv, err := svc.Create(context.Background(), CreateParams{
		TeamID: uuid.New(), CreatedBy: uuid.New(),
		Email: "  U2@Example.com ", Role: team.RoleAdmin, ExpiresInHours: &hours,
	})
	require.NoError(t, err)

	require.NotNil(t, inv.Email)
	assert.Equal(t, "u2@example.com", *inv.Email)
	assert.Equal(t, team.RoleAdmin, inv.Role)
	require.NotNil(t, inv.ExpiresAt)
	assert.Equal(t, fixedNow.Add(48*time.Hour), *inv.ExpiresAt)
}

func TestCreate_Rejections(t *testing.T) {
	svc := newTestService(&mockRepo{})
	zero := 0

	_, err := svc.Create(context.Background(), CreateParams{Role: team.RoleOwner})
	assert.ErrorIs(t, err, team.ErrInvalidRole)

	_, err = svc.Create(context.Background(), CreateParams{Role: "superuser"})
	assert.ErrorIs(t, err, team.ErrInvalidRole)

	_, err = svc.Create(context.Background(), CreateParams{ExpiresInHours: &zero})
	assert.ErrorIs(t, err, ErrInvalidExpiry)
}

func TestCreate_RetriesCodeCollision(t *testing.T) {
	calls := 0
	var codes []string
	svc := newTestService(&mockRepo{createFn: func(_ context.Context, inv *Invite) error {
		calls++
		codes = append(codes, inv.Code)
		if calls < 3 {
			return ErrDuplicateCode
		}
		return nil
	}})

	_, err := svc.Create(context.Background(), CreateParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, codes, 3)
}

func TestCreate_GivesUpAfterRepeatedCollisions(t *testing.T) {
	svc := newTestService(&mockRepo{createFn: func(context.Context, *Invite) error {
		return ErrDuplicateCode
	}})

	_, err := svc.Create(context.Background(), CreateParams{})
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestRevoke(t *testing.T) {
	teamID, id := uuid.New(), uuid.New()
	var revokedAt time.Time
	svc := newTestService(&mockRepo{
		getByIDFn: func(context.Context, uuid.UUID, uuid.UUID) (*Invite, error) {
			return &Invite{ID: id, TeamID: teamID}, nil
		},
		revokeFn: func(_ context.Context, _, _ uuid.UUID, at time.Time) error {
			revokedAt = at
			return nil
		},
	})

	require.NoError(t, svc.Revoke(context.Background(), teamID, id))
	assert.Equal(t, fixedNow, revokedAt)
}

func TestRevoke_NotPending(t *testing.T) {
	used := fixedNow.Add(-time.Hour)
	svc := newTestService(&mockRepo{
		getByIDFn: func(context.Context, uuid.UUID, uuid.UUID) (*Invite, error) {
			return &Invite{UsedAt: &used}, nil
		},
		revokeFn: func(context.Context, uuid.UUID, uuid.UUID, time.Time) error {
			t.Fatal("revoke must not be called")
			return nil
		},
	})

	assert.ErrorIs(t, svc.Revoke(context.Background(), uuid.New(), uuid.New()), ErrNotPending)
}

func TestRedeem_NormalizesCode(t *testing.T) {
	var gotCode string
	svc := newTestService(&mockRepo{redeemFn: func(_ context.Context, code string, _ uuid.UUID, _ string, now time.Time) (*team.Member, *Invite, error) {
		gotCode = code
		assert.Equal(t, fixedNow, now)
		return &team.Member{Role: team.RoleMember}, &Invite{}, nil
	}})

	m, _, err := svc.Redeem(context.Background(), " A1B2C3D4 ", uuid.New(), "u2@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4", gotCode)
	assert.Equal(t, team.RoleMember, m.Role)
}

func TestRedeem_MalformedCode(t *testing.T) {
	svc := newTestService(&mockRepo{redeemFn: func(context.Context, string, uuid.UUID, string, time.Time) (*team.Member, *Invite, error) {
		t.Fatal("repository must not be queried")
		return nil, nil, nil
	}})

	_, _, err := svc.Redeem(context.Background(), "abc", uuid.New(), "")
	assert.ErrorIs(t, err, ErrInviteNotFound)
}
