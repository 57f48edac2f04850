// internal/app/features/insights/routes.go
package insights

import (
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeInsights)
	return r
}
