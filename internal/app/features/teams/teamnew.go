// internal/app/features/teams/teamnew.go
package teams

import (
	"context"
	"errors"
	"net/http"

	teamstore "github.com/dalemusser/teampulse/internal/app/store/teams"
	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	"github.com/dalemusser/teampulse/internal/app/system/htmlsanitize"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/app/system/txn"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.uber.org/zap"
)

type createTeamRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// HandleCreateTeam handles POST /teams. The creator becomes the team admin.
func (h *Handler) HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}

	var req createTeamRequest
	if err := apiio.Decode(r, &req); err != nil {
		apiio.WriteInvalid(w, err)
		return
	}
	name := htmlsanitize.Text(req.Name)
	if name == "" {
		apiio.WriteError(w, http.StatusBadRequest, apiio.KindValidation, "name is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var team models.Team
	err := txn.Run(ctx, h.Client, h.Log, func(ctx context.Context) error {
		t, err := h.Teams.Create(ctx, models.Team{
			Name:        name,
			Description: htmlsanitize.Text(req.Description),
			OwnerID:     uid,
		})
		if err != nil {
			return err
		}
		if _, err := h.Memberships.Add(ctx, t.ID, uid, models.TeamRoleAdmin); err != nil {
			return err
		}
		team = t
		return nil
	})
	if errors.Is(err, teamstore.ErrDuplicateTeamName) {
		apiio.WriteError(w, http.StatusConflict, apiio.KindValidation, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("create team", zap.String("owner_id", uid.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	h.Log.Info("team created",
		zap.String("team_id", team.ID.Hex()),
		zap.String("owner_id", uid.Hex()))

	apiio.WriteJSON(w, http.StatusCreated, teamSummary{Team: team, Role: models.TeamRoleAdmin})
}
