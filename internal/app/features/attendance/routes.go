// internal/app/features/attendance/routes.go
package attendance

import (
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /attendance.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/today", h.ServeMyToday)
	return r
}

// MountTeamRoutes registers the per-team attendance routes on the router
// mounted at /teams. Team roles are checked in the handlers.
func MountTeamRoutes(r chi.Router, h *Handler, sm *auth.SessionManager) {
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Post("/{teamID}/attendance/code", h.HandleGenerate)
		pr.Post("/{teamID}/attendance/code/regenerate", h.HandleRegenerate)
		pr.Get("/{teamID}/attendance/code", h.ServeCode)

		pr.Post("/{teamID}/attendance/sign-in", h.HandleSignIn)

		pr.Get("/{teamID}/attendance/today", h.ServeTeamToday)
		pr.Get("/{teamID}/attendance", h.ServeTeamDay)
	})
}
