// internal/app/features/attendance/signin.go
package attendance

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type signInRequest struct {
	Code string `json:"code" validate:"required,len=6,number"`
}

// HandleSignIn handles POST /teams/{teamID}/attendance/sign-in.
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	teamID, ok := teamIDParam(w, r)
	if !ok {
		return
	}

	scope := "attendance:" + teamID.Hex()
	if h.Limiter != nil {
		if allowed, retry := h.Limiter.Check(r, uid.Hex(), scope); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			apiio.WriteError(w, http.StatusTooManyRequests, apiio.KindValidation, "too many attempts; try again later")
			return
		}
	}

	var req signInRequest
	if err := apiio.Decode(r, &req); err != nil {
		apiio.WriteInvalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Svc.Membership(ctx, uid, teamID); err != nil {
		h.writeServiceError(w, "authorize sign-in", err)
		return
	}

	rec, err := h.Svc.SignIn(ctx, uid, teamID, req.Code)
	if err != nil {
		h.writeServiceError(w, "attendance sign-in", err)
		return
	}

	if h.Limiter != nil {
		h.Limiter.Reset(uid.Hex(), scope)
	}
	h.Log.Info("attendance recorded",
		zap.String("team_id", teamID.Hex()),
		zap.String("user_id", uid.Hex()),
		zap.String("date", rec.Date))

	apiio.WriteJSON(w, http.StatusCreated, rec)
}
