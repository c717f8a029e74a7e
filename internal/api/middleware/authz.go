package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adorable-dev/adorable/internal/api/response"
	"github.com/adorable-dev/adorable/internal/team"
)

const (
	teamKey   contextKey = "team"
	memberKey contextKey = "teamMember"
)

// TeamLookup loads a team and the caller's membership in it.
type TeamLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*team.Team, error)
	GetMember(ctx context.Context, teamID, userID uuid.UUID) (*team.Member, error)
}

// TeamMember resolves the {teamId} URL parameter and the caller's membership.
// An invalid id returns 400, an unknown team 404 and a non-member 403.
func TeamMember(teams TeamLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
				return
			}

			teamID, err := uuid.Parse(chi.URLParam(r, "teamId"))
			if err != nil {
				response.Err(w, http.StatusBadRequest, "INVALID_ID", "teamId must be a valid UUID", requestID)
				return
			}

			t, err := teams.GetByID(r.Context(), teamID)
			if err != nil {
				if errors.Is(err, team.ErrTeamNotFound) {
					response.Err(w, http.StatusNotFound, "NOT_FOUND", "Team not found", requestID)
					return
				}
				Logger(r.Context()).Errorw("failed to load team", "error", err, "team_id", teamID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load team", requestID)
				return
			}

			m, err := teams.GetMember(r.Context(), teamID, identity.UserID)
			if err != nil {
				if errors.Is(err, team.ErrMemberNotFound) {
					response.Err(w, http.StatusForbidden, "FORBIDDEN", "You are not a member of this team", requestID)
					return
				}
				Logger(r.Context()).Errorw("failed to load team membership", "error", err, "team_id", teamID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load team membership", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), teamKey, t)
			ctx = context.WithValue(ctx, memberKey, m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTeamRole returns middleware that rejects members whose role is not in
// the allowed list. It must run after TeamMember.
func RequireTeamRole(roles ...team.Role) func(http.Handler) http.Handler {
	allowed := make(map[team.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			m := GetMember(r.Context())
			if m == nil || !allowed[m.Role] {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient team role", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetTeam retrieves the team attached by TeamMember.
func GetTeam(ctx context.Context) *team.Team {
	if t, ok := ctx.Value(teamKey).(*team.Team); ok {
		return t
	}
	return nil
}

// GetMember retrieves the caller's membership attached by TeamMember.
func GetMember(ctx context.Context) *team.Member {
	if m, ok := ctx.Value(memberKey).(*team.Member); ok {
		return m
	}
	return nil
}

// WithTeamMember returns a copy of ctx carrying t and m.
func WithTeamMember(ctx context.Context, t *team.Team, m *team.Member) context.Context {
	ctx = context.WithValue(ctx, teamKey, t)
	return context.WithValue(ctx, memberKey, m)
}
