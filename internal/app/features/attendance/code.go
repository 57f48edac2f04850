// internal/app/features/attendance/code.go
package attendance

import (
	"context"
	"net/http"

	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.uber.org/zap"
)

type codeResponse struct {
	Code        string `json:"code"`
	Date        string `json:"date"`
	GeneratedAt int64  `json:"generated_at,omitempty"`
}

// HandleGenerate handles POST /teams/{teamID}/attendance/code.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, false)
}

// HandleRegenerate handles POST /teams/{teamID}/attendance/code/regenerate.
func (h *Handler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, true)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, regenerate bool) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	teamID, ok := teamIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Svc.RequireTeamAdmin(ctx, uid, teamID); err != nil {
		h.writeServiceError(w, "authorize code issue", err)
		return
	}

	var (
		tc  models.TeamAttendanceCode
		err error
	)
	if regenerate {
		tc, err = h.Svc.Regenerate(ctx, teamID)
	} else {
		tc, err = h.Svc.Generate(ctx, teamID)
	}
	if err != nil {
		h.writeServiceError(w, "issue attendance code", err)
		return
	}

	h.Log.Info("attendance code issued",
		zap.String("team_id", teamID.Hex()),
		zap.String("date", tc.Date),
		zap.Bool("regenerate", regenerate))

	apiio.WriteJSON(w, http.StatusOK, codeResponse{Code: tc.Code, Date: tc.Date, GeneratedAt: tc.GeneratedAt})
}

// ServeCode handles GET /teams/{teamID}/attendance/code.
func (h *Handler) ServeCode(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	teamID, ok := teamIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Svc.RequireTeamAdmin(ctx, uid, teamID); err != nil {
		h.writeServiceError(w, "authorize code read", err)
		return
	}

	code, found, err := h.Svc.TodayCodeFor(ctx, teamID)
	if err != nil {
		h.writeServiceError(w, "load attendance code", err)
		return
	}
	if !found {
		apiio.WriteError(w, http.StatusNotFound, apiio.KindNotFound, "no attendance code has been generated today")
		return
	}
	apiio.WriteJSON(w, http.StatusOK, codeResponse{Code: code, Date: h.Svc.Today()})
}
