package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by the local cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Cache  Pinger
	Log    *zap.Logger
}

// NewHandler constructs a health Handler with the Mongo client, local cache and logger.
func NewHandler(client *mongo.Client, cache Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Cache:  cache,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "cache":"ok" }
//
// On failure of either store: 503 and
//
//	{ "status":"error", "database":"disconnected", "cache":"ok", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Cache:    "ok",
	}
	status := http.StatusOK

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
	}

	if h.Cache != nil {
		if err := h.Cache.Ping(ctx); err != nil {
			h.Log.Error("health-check: local cache ping failed", zap.Error(err))
			resp.Cache = "unavailable"
			if status == http.StatusOK {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = "Local cache unavailable"
				resp.Error = err.Error()
			}
		}
	}

	apiio.WriteJSON(w, status, resp)
}
