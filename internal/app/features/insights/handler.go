// internal/app/features/insights/handler.go
package insights

import (
	"context"
	"errors"
	"net/http"
	"time"

	attendancestore "github.com/dalemusser/teampulse/internal/app/store/attendance"
	"github.com/dalemusser/teampulse/internal/app/store/localcache"
	teamstore "github.com/dalemusser/teampulse/internal/app/store/teams"
	membershipstore "github.com/dalemusser/teampulse/internal/app/store/teammemberships"
	userstore "github.com/dalemusser/teampulse/internal/app/store/users"
	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	insightsvc "github.com/dalemusser/teampulse/internal/app/system/insights"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	// CacheTTL is how long a stored report is served before asking the
	// webhook again.
	CacheTTL = 6 * time.Hour

	// PeriodDays is the attendance window summarized for the webhook.
	PeriodDays = 30
)

// Handler serves performance insights for the caller within a team.
type Handler struct {
	Teams       *teamstore.Store
	Memberships *membershipstore.Store
	Users       *userstore.Store
	Records     *attendancestore.Store
	Cache       *localcache.Cache
	Client      *insightsvc.Client
	Loc         *time.Location
	Log         *zap.Logger

	now func() time.Time
}

func NewHandler(db *mongo.Database, cache *localcache.Cache, client *insightsvc.Client, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		Teams:       teamstore.New(db),
		Memberships: membershipstore.New(db),
		Users:       userstore.New(db),
		Records:     attendancestore.New(db),
		Cache:       cache,
		Client:      client,
		Loc:         loc,
		Log:         logger,
		now:         time.Now,
	}
}

// WithClock replaces the handler's time source.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// ServeInsights handles GET /insights?team_id=...&refresh=true.
func (h *Handler) ServeInsights(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	teamID, err := primitive.ObjectIDFromHex(query.Get(r, "team_id"))
	if err != nil {
		apiio.WriteError(w, http.StatusBadRequest, apiio.KindValidation, "team_id is required")
		return
	}
	refresh := query.Get(r, "refresh") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Memberships.Get(ctx, teamID, uid); err != nil {
		if errors.Is(err, membershipstore.ErrNotMember) {
			apiio.WriteError(w, http.StatusForbidden, apiio.KindAuth, "you are not a member of this team")
			return
		}
		h.Log.Error("load membership", zap.String("team_id", teamID.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	if !refresh {
		cached, err := h.Cache.GetInsights(ctx, uid.Hex(), teamID.Hex())
		if err != nil {
			h.Log.Warn("read insights cache", zap.String("user_id", uid.Hex()), zap.Error(err))
		}
		if cached != nil && h.now().Sub(cached.FetchedAt) < CacheTTL {
			apiio.WriteJSON(w, http.StatusOK, cached)
			return
		}
	}

	req, err := h.buildRequest(ctx, uid, teamID)
	if err != nil {
		h.Log.Error("compute attendance statistics",
			zap.String("user_id", uid.Hex()),
			zap.String("team_id", teamID.Hex()),
			zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	fetchCtx, fetchCancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer fetchCancel()
	res := h.Client.Fetch(fetchCtx, req)

	report := models.InsightReport{
		UserID:    uid.Hex(),
		TeamID:    teamID.Hex(),
		Insights:  res.Insights,
		Source:    res.Source,
		FetchedAt: h.now().UTC(),
	}
	if err := h.Cache.PutInsights(r.Context(), report); err != nil {
		h.Log.Warn("write insights cache", zap.String("user_id", uid.Hex()), zap.Error(err))
	}

	h.Log.Debug("insights fetched",
		zap.String("request_id", req.RequestID),
		zap.String("source", res.Source),
		zap.Int("count", len(res.Insights)))

	apiio.WriteJSON(w, http.StatusOK, report)
}

// buildRequest gathers the caller's attendance for the last PeriodDays days
// (today included) in the attendance time zone.
func (h *Handler) buildRequest(ctx context.Context, uid, teamID primitive.ObjectID) (insightsvc.Request, error) {
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return insightsvc.Request{}, err
	}
	team, err := h.Teams.GetByID(ctx, teamID)
	if err != nil {
		return insightsvc.Request{}, err
	}

	from := h.now().In(h.Loc).AddDate(0, 0, -(PeriodDays - 1)).Format(models.DateLayout)
	days, err := h.Records.CountForUserTeamSince(ctx, uid, teamID, from)
	if err != nil {
		return insightsvc.Request{}, err
	}

	return insightsvc.Request{
		RequestID:      uuid.NewString(),
		UserID:         uid.Hex(),
		UserName:       u.DisplayName(),
		TeamID:         teamID.Hex(),
		TeamName:       team.Name,
		AttendanceDays: int(days),
		PeriodDays:     PeriodDays,
	}, nil
}
