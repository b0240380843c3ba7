package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/flow"
	"github.com/conversant-bank/atm-backend/internal/session"
)

type FlowHandler struct {
	flows    *flow.Controller
	sessions *session.Manager
}

func NewFlowHandler(flows *flow.Controller, sessions *session.Manager) *FlowHandler {
	return &FlowHandler{flows: flows, sessions: sessions}
}

type flowResponse struct {
	FlowID   string            `json:"flow_id"`
	IntentID string            `json:"intent_id"`
	Status   string            `json:"status"`
	Steps    []domain.FlowStep `json:"steps"`
}

func flowResponseOf(f *domain.ScreenFlow) flowResponse {
	return flowResponse{
		FlowID:   f.ID.String(),
		IntentID: f.IntentID.String(),
		Status:   string(f.Status),
		Steps:    f.Steps,
	}
}

func (h *FlowHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, err := resolveSession(r, h.sessions); err != nil {
		RespondDomainError(w, err)
		return
	}

	flowID, err := uuid.Parse(r.PathValue("flow_id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "flow_id", Message: "must be a UUID"}})
		return
	}

	f, err := h.flows.Get(r.Context(), flowID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, flowResponseOf(f))
}

func (h *FlowHandler) Interrupt(w http.ResponseWriter, r *http.Request) {
	if _, err := resolveSession(r, h.sessions); err != nil {
		RespondDomainError(w, err)
		return
	}

	flowID, err := uuid.Parse(r.PathValue("flow_id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "flow_id", Message: "must be a UUID"}})
		return
	}

	f, i, err := h.flows.Interrupt(r.Context(), flowID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"flow":   flowResponseOf(f),
		"intent": intentResponseOf(i),
	})
}
