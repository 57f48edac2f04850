// internal/app/features/teams/list.go
package teams

import (
	"context"
	"net/http"

	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// teamSummary is a team as seen by one user.
type teamSummary struct {
	models.Team
	Role string `json:"role"` // caller's role in the team
}

// ServeList handles GET /teams.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ms, err := h.Memberships.ListByUser(ctx, uid)
	if err != nil {
		h.Log.Error("list memberships", zap.String("user_id", uid.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	roles := make(map[primitive.ObjectID]string, len(ms))
	ids := make([]primitive.ObjectID, 0, len(ms))
	for _, m := range ms {
		roles[m.TeamID] = m.Role
		ids = append(ids, m.TeamID)
	}

	teams, err := h.Teams.ListByIDs(ctx, ids)
	if err != nil {
		h.Log.Error("list teams", zap.String("user_id", uid.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	out := make([]teamSummary, 0, len(teams))
	for _, t := range teams {
		out = append(out, teamSummary{Team: t, Role: roles[t.ID]})
	}
	apiio.WriteJSON(w, http.StatusOK, map[string]any{"teams": out})
}
