// internal/app/features/teams/routes.go
package teams

import (
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the team endpoints on r, which is mounted at /teams.
// Attendance registers its own /{teamID}/attendance routes on the same router.
func MountRoutes(r chi.Router, h *Handler, sm *auth.SessionManager) {
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// LIST
		pr.Get("/", h.ServeList)

		// JOIN
		pr.Post("/join", h.HandleJoin)

		// MEMBERS
		pr.Get("/{teamID}/members", h.ServeMembers)
		pr.Delete("/{teamID}/members/{userID}", h.HandleRemoveMember)
	})

	// CREATE (account admins only)
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(models.RoleAdmin))
		pr.Post("/", h.HandleCreateTeam)
	})
}
