package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/executor"
	"github.com/conversant-bank/atm-backend/internal/session"
)

// TransactionHandler serves the structured one-shot transaction endpoints.
// They carry the full field set up front and bypass the intent engine.
type TransactionHandler struct {
	exec     *executor.Executor
	sessions *session.Manager
}

func NewTransactionHandler(exec *executor.Executor, sessions *session.Manager) *TransactionHandler {
	return &TransactionHandler{exec: exec, sessions: sessions}
}

type transactionRequest struct {
	FromAccountID     string `json:"from_account_id"`
	ToAccountID       string `json:"to_account_id"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	ReceiptPreference string `json:"receipt_preference"`
}

func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, domain.OperationWithdraw)
}

func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, domain.OperationDeposit)
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, domain.OperationTransfer)
}

func (h *TransactionHandler) run(w http.ResponseWriter, r *http.Request, op domain.Operation) {
	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if err := h.sessions.RequireAuthorized(sess); err != nil {
		RespondDomainError(w, err)
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	execReq := executor.Request{
		CustomerID:  sess.CustomerID,
		Operation:   op,
		Currency:    req.Currency,
		ReceiptMode: sess.Preferences.ReceiptMode,
	}
	if execReq.Currency == "" {
		execReq.Currency = "USD"
	}
	if mode := domain.ReceiptMode(req.ReceiptPreference); mode.IsValid() {
		execReq.ReceiptMode = mode
	}

	var fields []FieldError
	if req.FromAccountID != "" {
		id, err := uuid.Parse(req.FromAccountID)
		if err != nil {
			fields = append(fields, FieldError{Field: "from_account_id", Message: "must be a UUID"})
		} else {
			execReq.FromAccountID = &id
		}
	}
	if req.ToAccountID != "" {
		id, err := uuid.Parse(req.ToAccountID)
		if err != nil {
			fields = append(fields, FieldError{Field: "to_account_id", Message: "must be a UUID"})
		} else {
			execReq.ToAccountID = &id
		}
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		fields = append(fields, FieldError{Field: "amount", Message: "must be a decimal amount"})
	} else {
		execReq.Amount = amount
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	res, err := h.exec.Execute(r.Context(), execReq)
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
	RespondSuccess(w, http.StatusOK, resp)
}
