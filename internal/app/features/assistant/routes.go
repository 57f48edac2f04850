// internal/app/features/assistant/routes.go
package assistant

import (
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Post("/messages", h.HandleSend)
	r.Get("/conversations/{id}", h.ServeConversation)

	return r
}
