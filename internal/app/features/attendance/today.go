// internal/app/features/attendance/today.go
package attendance

import (
	"context"
	"net/http"

	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

type todayResponse struct {
	Date     string                   `json:"date"`
	SignedIn bool                     `json:"signed_in"`
	Record   *models.AttendanceRecord `json:"record,omitempty"`
}

// ServeMyToday handles GET /attendance/today.
func (h *Handler) ServeMyToday(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.TodayAttendanceFor(ctx, uid)
	if err != nil {
		h.writeServiceError(w, "load today's attendance", err)
		return
	}
	apiio.WriteJSON(w, http.StatusOK, todayResponse{Date: h.Svc.Today(), SignedIn: rec != nil, Record: rec})
}

// ServeTeamToday handles GET /teams/{teamID}/attendance/today.
func (h *Handler) ServeTeamToday(w http.ResponseWriter, r *http.Request) {
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

	v, err := h.Svc.TodayView(ctx, uid, teamID)
	if err != nil {
		h.writeServiceError(w, "load team attendance view", err)
		return
	}
	apiio.WriteJSON(w, http.StatusOK, v)
}

// ServeTeamDay handles GET /teams/{teamID}/attendance?date=YYYY-MM-DD.
// A missing date means today.
func (h *Handler) ServeTeamDay(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	teamID, ok := teamIDParam(w, r)
	if !ok {
		return
	}
	date := query.Get(r, "date")
	if date == "" {
		date = h.Svc.Today()
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Svc.RequireTeamAdmin(ctx, uid, teamID); err != nil {
		h.writeServiceError(w, "authorize attendance list", err)
		return
	}

	recs, err := h.Svc.TeamAttendance(ctx, teamID, date)
	if err != nil {
		h.writeServiceError(w, "list attendance", err)
		return
	}
	if recs == nil {
		recs = []models.AttendanceRecord{}
	}
	apiio.WriteJSON(w, http.StatusOK, map[string]any{"date": date, "records": recs})
}
