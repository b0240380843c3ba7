package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/session"
	"github.com/conversant-bank/atm-backend/internal/store"
)

const detailTransactionCount = 10

type AccountHandler struct {
	store    store.Store
	sessions *session.Manager
}

func NewAccountHandler(st store.Store, sessions *session.Manager) *AccountHandler {
	return &AccountHandler{store: st, sessions: sessions}
}

type accountSummaryResponse struct {
	AccountID    string `json:"account_id"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	MaskedNumber string `json:"masked_number"`
	Currency     string `json:"currency"`
	Balance      string `json:"balance"`
}

func summaryOf(a domain.Account) accountSummaryResponse {
	return accountSummaryResponse{
		AccountID:    a.ID.String(),
		Type:         string(a.Type),
		Name:         a.Name,
		MaskedNumber: a.MaskedNumber,
		Currency:     a.Currency,
		Balance:      a.Balance.StringFixed(2),
	}
}

func (h *AccountHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if err := h.sessions.RequireAuthorized(sess); err != nil {
		RespondDomainError(w, err)
		return
	}

	accounts, err := h.store.AccountsByCustomer(r.Context(), sess.CustomerID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]accountSummaryResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, summaryOf(a))
	}
	RespondSuccess(w, http.StatusOK, map[string]any{"accounts": out})
}

type transactionDetailResponse struct {
	TransactionID string `json:"transaction_id"`
	Operation     string `json:"operation"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
}

func (h *AccountHandler) Details(w http.ResponseWriter, r *http.Request) {
	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if err := h.sessions.RequireAuthorized(sess); err != nil {
		RespondDomainError(w, err)
		return
	}

	accountID, err := uuid.Parse(r.PathValue("account_id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "account_id", Message: "must be a UUID"}})
		return
	}

	acct, err := h.store.AccountByID(r.Context(), accountID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if acct.CustomerID != sess.CustomerID {
		RespondDomainError(w, domain.ErrNotFound)
		return
	}

	txns, err := h.store.TransactionsByAccount(r.Context(), acct.ID, detailTransactionCount)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	history := make([]transactionDetailResponse, 0, len(txns))
	for _, t := range txns {
		history = append(history, transactionDetailResponse{
			TransactionID: t.ID.String(),
			Operation:     string(t.Operation),
			Amount:        t.Amount.StringFixed(2),
			Currency:      t.Currency,
			Status:        string(t.Status),
			Timestamp:     t.Timestamp.Format(time.RFC3339),
		})
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"account":      summaryOf(*acct),
		"transactions": history,
	})
}
