// internal/app/features/teams/members.go
package teams

import (
	"context"
	"errors"
	"net/http"
	"time"

	membershipstore "github.com/dalemusser/teampulse/internal/app/store/teammemberships"
	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memberRow struct {
	UserID    primitive.ObjectID `json:"user_id"`
	Login     string             `json:"login"`
	Name      string             `json:"name"`
	AvatarURL string             `json:"avatar_url,omitempty"`
	Role      string             `json:"role"`
	JoinedAt  time.Time          `json:"joined_at"`
}

// callerMembership loads the caller's membership in teamID and writes the
// error response when there is none.
func (h *Handler) callerMembership(ctx context.Context, w http.ResponseWriter, uid, teamID primitive.ObjectID) (models.TeamMembership, bool) {
	m, err := h.Memberships.Get(ctx, teamID, uid)
	if errors.Is(err, membershipstore.ErrNotMember) {
		apiio.WriteError(w, http.StatusForbidden, apiio.KindAuth, "you are not a member of this team")
		return m, false
	}
	if err != nil {
		h.Log.Error("load membership",
			zap.String("team_id", teamID.Hex()),
			zap.String("user_id", uid.Hex()),
			zap.Error(err))
		apiio.WriteUnavailable(w)
		return m, false
	}
	return m, true
}

// ServeMembers handles GET /teams/{teamID}/members.
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	teamID, ok := objectIDParam(w, r, "teamID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, ok := h.callerMembership(ctx, w, uid, teamID); !ok {
		return
	}

	ms, err := h.Memberships.ListByTeam(ctx, teamID)
	if err != nil {
		h.Log.Error("list team members", zap.String("team_id", teamID.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.UserID)
	}
	users, err := h.Users.ListByIDs(ctx, ids)
	if err != nil {
		h.Log.Error("load member users", zap.String("team_id", teamID.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	rows := make([]memberRow, 0, len(ms))
	for _, m := range ms {
		u := users[m.UserID]
		rows = append(rows, memberRow{
			UserID:    m.UserID,
			Login:     u.Login,
			Name:      u.DisplayName(),
			AvatarURL: u.AvatarURL,
			Role:      m.Role,
			JoinedAt:  m.JoinedAt,
		})
	}
	apiio.WriteJSON(w, http.StatusOK, map[string]any{"members": rows})
}

// HandleRemoveMember handles DELETE /teams/{teamID}/members/{userID}.
// The last team admin cannot be removed.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	teamID, ok := objectIDParam(w, r, "teamID")
	if !ok {
		return
	}
	targetID, ok := objectIDParam(w, r, "userID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	caller, ok := h.callerMembership(ctx, w, uid, teamID)
	if !ok {
		return
	}
	if caller.Role != models.TeamRoleAdmin {
		apiio.WriteError(w, http.StatusForbidden, apiio.KindAuth, "team admin required")
		return
	}

	target, err := h.Memberships.Get(ctx, teamID, targetID)
	if errors.Is(err, membershipstore.ErrNotMember) {
		apiio.WriteError(w, http.StatusNotFound, apiio.KindNotFound, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("load target membership", zap.String("team_id", teamID.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}
	if target.Role == models.TeamRoleAdmin {
		n, err := h.Memberships.CountAdmins(ctx, teamID)
		if err != nil {
			h.Log.Error("count team admins", zap.String("team_id", teamID.Hex()), zap.Error(err))
			apiio.WriteUnavailable(w)
			return
		}
		if n <= 1 {
			apiio.WriteError(w, http.StatusConflict, apiio.KindValidation, "cannot remove the last team admin")
			return
		}
	}

	if err := h.Memberships.Remove(ctx, teamID, targetID); err != nil {
		if errors.Is(err, membershipstore.ErrNotMember) {
			apiio.WriteError(w, http.StatusNotFound, apiio.KindNotFound, err.Error())
			return
		}
		h.Log.Error("remove member", zap.String("team_id", teamID.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	h.Log.Info("member removed",
		zap.String("team_id", teamID.Hex()),
		zap.String("user_id", targetID.Hex()),
		zap.String("removed_by", uid.Hex()))

	w.WriteHeader(http.StatusNoContent)
}
