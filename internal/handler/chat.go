package handler

import (
	"encoding/json"
	"net/http"

	"github.com/conversant-bank/atm-backend/internal/orchestrator"
	"github.com/conversant-bank/atm-backend/internal/session"
)

type ChatHandler struct {
	orch     *orchestrator.Orchestrator
	sessions *session.Manager
}

func NewChatHandler(orch *orchestrator.Orchestrator, sessions *session.Manager) *ChatHandler {
	return &ChatHandler{orch: orch, sessions: sessions}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat runs one conversational turn through the orchestrator. The session
// must have completed the full phase handshake first.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if err := h.sessions.RequireAuthorized(sess); err != nil {
		RespondDomainError(w, err)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Message == "" {
		RespondValidationError(w, []FieldError{{Field: "message", Message: "required"}})
		return
	}

	reply, err := h.orch.HandleMessage(r.Context(), sess, req.Message)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, chatResponse{Reply: reply})
}
