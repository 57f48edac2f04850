// internal/app/features/assistant/handler.go
package assistant

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	assistantsvc "github.com/dalemusser/teampulse/internal/app/system/assistant"
	"github.com/dalemusser/teampulse/internal/app/system/authz"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Svc *assistantsvc.Service
	Log *zap.Logger
}

func NewHandler(svc *assistantsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

type sendRequest struct {
	ConversationID string `json:"conversation_id" validate:"omitempty,uuid"`
	TeamID         string `json:"team_id" validate:"omitempty,len=24,hexadecimal"`
	Message        string `json:"message" validate:"required,max=4000"`
}

// HandleSend handles POST /assistant/messages.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	if !h.Svc.Enabled() {
		apiio.WriteError(w, http.StatusServiceUnavailable, apiio.KindTransient, assistantsvc.ErrUnavailable.Error())
		return
	}

	var req sendRequest
	if err := apiio.Decode(r, &req); err != nil {
		apiio.WriteInvalid(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	reply, err := h.Svc.Send(ctx, uid.Hex(), req.TeamID, req.ConversationID, req.Message)
	if err != nil {
		h.writeError(w, uid.Hex(), req.ConversationID, err)
		return
	}
	apiio.WriteJSON(w, http.StatusOK, reply)
}

// ServeConversation handles GET /assistant/conversations/{id}.
func (h *Handler) ServeConversation(w http.ResponseWriter, r *http.Request) {
	uid, ok := authz.UserID(r)
	if !ok {
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "sign in required")
		return
	}
	convID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	msgs, err := h.Svc.Conversation(ctx, uid.Hex(), convID)
	if err != nil {
		h.writeError(w, uid.Hex(), convID, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	apiio.WriteJSON(w, http.StatusOK, map[string]any{
		"conversation_id": convID,
		"messages":        msgs,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, userID, convID string, err error) {
	switch {
	case errors.Is(err, assistantsvc.ErrNotFound):
		apiio.WriteError(w, http.StatusNotFound, apiio.KindNotFound, err.Error())
	case errors.Is(err, assistantsvc.ErrUnavailable):
		apiio.WriteError(w, http.StatusServiceUnavailable, apiio.KindTransient, err.Error())
	default:
		h.Log.Error("assistant request failed",
			zap.String("user_id", userID),
			zap.String("conversation_id", convID),
			zap.Error(err))
		apiio.WriteUnavailable(w)
	}
}
