// internal/app/features/me/handler.go
package me

import (
	"context"
	"errors"
	"net/http"
	"time"

	userstore "github.com/dalemusser/teampulse/internal/app/store/users"
	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's own account.
type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
}

// NewHandler creates a new me handler.
func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		SessionMgr: sessionMgr,
		Log:        logger,
	}
}

type meResponse struct {
	User      models.User `json:"user"`
	NeedsRole bool        `json:"needs_role"`
}

// ServeMe handles GET /me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, userstore.ErrNotFound) {
		apiio.WriteError(w, http.StatusNotFound, apiio.KindNotFound, "user not found")
		return
	}
	if err != nil {
		h.Log.Error("load user", zap.String("user_id", uid.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	apiio.WriteJSON(w, http.StatusOK, meResponse{User: u, NeedsRole: u.Role == ""})
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member"`
}

type roleResponse struct {
	User      models.User `json:"user"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// ServeSetRole handles PUT /me/role. The role can be chosen once.
//
// A fresh bearer token carrying the new role is returned so the mobile client
// does not keep a token that still says "no role".
func (h *Handler) ServeSetRole(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}

	var req roleRequest
	if err := apiio.Decode(r, &req); err != nil {
		apiio.WriteInvalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.SetRole(ctx, uid, req.Role)
	switch {
	case errors.Is(err, userstore.ErrRoleAlreadySet):
		apiio.WriteError(w, http.StatusConflict, apiio.KindValidation, err.Error())
		return
	case errors.Is(err, userstore.ErrBadRole):
		apiio.WriteError(w, http.StatusBadRequest, apiio.KindValidation, err.Error())
		return
	case errors.Is(err, userstore.ErrNotFound):
		apiio.WriteError(w, http.StatusNotFound, apiio.KindNotFound, "user not found")
		return
	case err != nil:
		h.Log.Error("set role", zap.String("user_id", uid.Hex()), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	h.Log.Info("role selected", zap.String("user_id", uid.Hex()), zap.String("role", u.Role))

	su := auth.SessionUser{ID: u.ID.Hex(), Login: u.Login, Name: u.DisplayName(), Role: u.Role}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.Log.Warn("refresh session after role change", zap.String("user_id", su.ID), zap.Error(err))
	}

	resp := roleResponse{User: u}
	if tokens := h.SessionMgr.Tokens(); tokens != nil {
		tok, exp, err := tokens.Issue(su)
		if err != nil {
			h.Log.Error("issue token", zap.String("user_id", su.ID), zap.Error(err))
			apiio.WriteUnavailable(w)
			return
		}
		resp.Token = tok
		resp.ExpiresAt = &exp
	}
	apiio.WriteJSON(w, http.StatusOK, resp)
}
