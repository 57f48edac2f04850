// internal/app/features/attendance/handler.go
package attendance

import (
	"errors"
	"net/http"

	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	attendancesvc "github.com/dalemusser/teampulse/internal/app/system/attendance"
	"github.com/dalemusser/teampulse/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler exposes the daily attendance code workflow over HTTP.
type Handler struct {
	Svc     *attendancesvc.Service
	Limiter *ratelimit.CodeLimiter
	Log     *zap.Logger
}

func NewHandler(svc *attendancesvc.Service, limiter *ratelimit.CodeLimiter, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Limiter: limiter, Log: logger}
}

func teamIDParam(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "teamID"))
	if err != nil {
		apiio.WriteError(w, http.StatusBadRequest, apiio.KindValidation, "invalid teamID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// writeServiceError maps attendance service errors to responses. Store
// failures are logged with op and surface as 503.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, attendancesvc.ErrInvalidCode),
		errors.Is(err, attendancesvc.ErrBadDate):
		apiio.WriteError(w, http.StatusBadRequest, apiio.KindValidation, err.Error())
	case errors.Is(err, attendancesvc.ErrAlreadySignedIn):
		apiio.WriteError(w, http.StatusConflict, apiio.KindValidation, err.Error())
	case errors.Is(err, attendancesvc.ErrNotTeamMember),
		errors.Is(err, attendancesvc.ErrNotTeamAdmin):
		apiio.WriteError(w, http.StatusForbidden, apiio.KindAuth, err.Error())
	default:
		h.Log.Error(op, zap.Error(err), zap.Bool("transient", attendancesvc.IsTransient(err)))
		apiio.WriteUnavailable(w)
	}
}
