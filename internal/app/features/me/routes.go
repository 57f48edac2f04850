// internal/app/features/me/routes.go
package me

import (
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /me router. All routes require a signed-in user.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeMe)
	r.Put("/role", h.ServeSetRole)

	return r
}
