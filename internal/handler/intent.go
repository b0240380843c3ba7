package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/executor"
	"github.com/conversant-bank/atm-backend/internal/intent"
	"github.com/conversant-bank/atm-backend/internal/session"
	"github.com/conversant-bank/atm-backend/internal/store"
)

type IntentHandler struct {
	engine   *intent.Engine
	exec     *executor.Executor
	sessions *session.Manager
	store    store.Store
}

func NewIntentHandler(engine *intent.Engine, exec *executor.Executor, sessions *session.Manager, st store.Store) *IntentHandler {
	return &IntentHandler{engine: engine, exec: exec, sessions: sessions, store: st}
}

type createIntentRequest struct {
	Operation              string            `json:"operation"`
	NaturalLanguageRequest string            `json:"natural_language_request"`
	Answers                map[string]string `json:"answers"`
}

type intentResponse struct {
	IntentID               string   `json:"intent_id"`
	Operation              string   `json:"operation"`
	Status                 string   `json:"status"`
	FromAccountID          *string  `json:"from_account_id"`
	ToAccountID            *string  `json:"to_account_id"`
	Amount                 *string  `json:"amount"`
	Currency               string   `json:"currency"`
	MissingFields          []string `json:"missing_fields"`
	ClarificationQuestions []string `json:"clarification_questions"`
}

func intentResponseOf(i *domain.TransactionIntent) intentResponse {
	resp := intentResponse{
		IntentID:               i.ID.String(),
		Operation:              string(i.Operation),
		Status:                 string(i.Status),
		Currency:               i.Currency,
		MissingFields:          i.MissingFields,
		ClarificationQuestions: intent.ClarificationQuestions(i.MissingFields),
	}
	if i.FromAccountID != nil {
		s := i.FromAccountID.String()
		resp.FromAccountID = &s
	}
	if i.ToAccountID != nil {
		s := i.ToAccountID.String()
		resp.ToAccountID = &s
	}
	if i.Amount != nil {
		s := i.Amount.StringFixed(2)
		resp.Amount = &s
	}
	return resp
}

// Create opens an intent from either a structured operation with answers or a
// free-text request that is run through the utterance parser first.
func (h *IntentHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if err := h.sessions.RequireAuthorized(sess); err != nil {
		RespondDomainError(w, err)
		return
	}

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	op := domain.Operation(req.Operation)
	answers := req.Answers
	if req.NaturalLanguageRequest != "" {
		accounts, err := h.store.AccountsByCustomer(r.Context(), sess.CustomerID)
		if err != nil {
			RespondDomainError(w, err)
			return
		}
		parsedOp, parsed, ok := intent.ParseUtterance(req.NaturalLanguageRequest, accounts)
		if !ok {
			RespondValidationError(w, []FieldError{{Field: "natural_language_request", Message: "could not determine an operation"}})
			return
		}
		op = parsedOp
		if answers == nil {
			answers = parsed
		} else {
			for k, v := range parsed {
				if _, set := answers[k]; !set {
					answers[k] = v
				}
			}
		}
	}

	i, err := h.engine.Create(r.Context(), sess, op, answers)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, intentResponseOf(i))
}

type updateIntentRequest struct {
	Answers map[string]string `json:"answers"`
}

func (h *IntentHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	intentID, err := uuid.Parse(r.PathValue("intent_id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "intent_id", Message: "must be a UUID"}})
		return
	}

	var req updateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	i, err := h.engine.Update(r.Context(), sess, intentID, req.Answers)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, intentResponseOf(i))
}

func (h *IntentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	intentID, err := uuid.Parse(r.PathValue("intent_id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "intent_id", Message: "must be a UUID"}})
		return
	}

	i, err := h.engine.Cancel(r.Context(), sess, intentID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, intentResponseOf(i))
}

type executeResponse struct {
	TransactionID   string            `json:"transaction_id,omitempty"`
	Status          string            `json:"status,omitempty"`
	ResponseCode    string            `json:"response_code"`
	UpdatedBalances map[string]string `json:"updated_balances"`
	RemainingLimit  *string           `json:"remaining_daily_limit,omitempty"`
	FlowID          string            `json:"flow_id,omitempty"`
}

// Execute runs a READY_TO_EXECUTE intent through the executor.
func (h *IntentHandler) Execute(w http.ResponseWriter, r *http.Request) {
	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if err := h.sessions.RequireAuthorized(sess); err != nil {
		RespondDomainError(w, err)
		return
	}

	intentID, err := uuid.Parse(r.PathValue("intent_id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "intent_id", Message: "must be a UUID"}})
		return
	}

	res, err := h.exec.ExecuteIntent(r.Context(), sess, intentID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	resp := executeResponse{
		ResponseCode:    string(domain.CodeApproved),
		UpdatedBalances: make(map[string]string, len(res.Balances)),
	}
	for id, b := range res.Balances {
		resp.UpdatedBalances[id.String()] = b.StringFixed(2)
	}
	if res.Transaction != nil {
		resp.TransactionID = res.Transaction.ID.String()
		resp.Status = string(res.Transaction.Status)
	}
	if res.RemainingLimit != nil {
		s := res.RemainingLimit.StringFixed(2)
		resp.RemainingLimit = &s
	}
	if res.Flow != nil {
		resp.FlowID = res.Flow.ID.String()
	}
	RespondSuccess(w, http.StatusOK, resp)
}
