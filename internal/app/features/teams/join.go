// internal/app/features/teams/join.go
package teams

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	teamstore "github.com/dalemusser/teampulse/internal/app/store/teams"
	membershipstore "github.com/dalemusser/teampulse/internal/app/store/teammemberships"
	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.uber.org/zap"
)

const joinScope = "join"

type joinRequest struct {
	JoinCode string `json:"join_code" validate:"required,len=8,alphanum"`
}

// HandleJoin handles POST /teams/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	if !authz.HasChosenRole(r) {
		apiio.WriteError(w, http.StatusForbidden, apiio.KindAuth, "choose a role before joining a team")
		return
	}

	if h.Limiter != nil {
		if allowed, retry := h.Limiter.Check(r, uid.Hex(), joinScope); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			apiio.WriteError(w, http.StatusTooManyRequests, apiio.KindValidation, "too many attempts; try again later")
			return
		}
	}

	var req joinRequest
	if err := apiio.Decode(r, &req); err != nil {
		apiio.WriteInvalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	team, err := h.Teams.GetByJoinCode(ctx, req.JoinCode)
	if errors.Is(err, teamstore.ErrNotFound) {
		apiio.WriteError(w, http.StatusNotFound, apiio.KindNotFound, "no team with that join code")
		return
	}
	if err != nil {
		h.Log.Error("lookup join code", zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	if _, err := h.Memberships.Add(ctx, team.ID, uid, models.TeamRoleMember); err != nil {
		if errors.Is(err, membershipstore.ErrDuplicateMembership) {
			apiio.WriteError(w, http.StatusConflict, apiio.KindValidation, err.Error())
			return
		}
		h.Log.Error("join team",
			zap.String("team_id", team.ID.Hex()),
			zap.String("user_id", uid.Hex()),
			zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	if h.Limiter != nil {
		h.Limiter.Reset(uid.Hex(), joinScope)
	}
	h.Log.Info("joined team",
		zap.String("team_id", team.ID.Hex()),
		zap.String("user_id", uid.Hex()))

	apiio.WriteJSON(w, http.StatusCreated, teamSummary{Team: team, Role: models.TeamRoleMember})
}
