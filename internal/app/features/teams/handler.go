// internal/app/features/teams/handler.go
package teams

import (
	"net/http"

	teamstore "github.com/dalemusser/teampulse/internal/app/store/teams"
	membershipstore "github.com/dalemusser/teampulse/internal/app/store/teammemberships"
	userstore "github.com/dalemusser/teampulse/internal/app/store/users"
	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves team creation, joining and membership management.
type Handler struct {
	Client      *mongo.Client
	Teams       *teamstore.Store
	Memberships *membershipstore.Store
	Users       *userstore.Store
	Limiter     *ratelimit.CodeLimiter
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, limiter *ratelimit.CodeLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Client:      db.Client(),
		Teams:       teamstore.New(db),
		Memberships: membershipstore.New(db),
		Users:       userstore.New(db),
		Limiter:     limiter,
		Log:         logger,
	}
}

// objectIDParam parses a chi URL parameter, writing a 400 when malformed.
func objectIDParam(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		apiio.WriteError(w, http.StatusBadRequest, apiio.KindValidation, "invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}
