package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/logging"
	"github.com/conversant-bank/atm-backend/internal/session"
	"github.com/conversant-bank/atm-backend/internal/store"
)

type ReceiptHandler struct {
	store    store.Store
	sessions *session.Manager
}

func NewReceiptHandler(st store.Store, sessions *session.Manager) *ReceiptHandler {
	return &ReceiptHandler{store: st, sessions: sessions}
}

type receiptRequest struct {
	TransactionID string `json:"transaction_id"`
	Mode          string `json:"mode"`
	Email         string `json:"email"`
}

type receiptResponse struct {
	ReceiptID string `json:"receipt_id"`
	Mode      string `json:"mode"`
	Content   string `json:"content"`
}

// Create renders and stores a receipt for a committed transaction. Email mode
// falls back to the address captured during the preferences phase.
func (h *ReceiptHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := resolveSession(r, h.sessions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if err := h.sessions.RequireAuthorized(sess); err != nil {
		RespondDomainError(w, err)
		return
	}

	var req receiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	txnID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "transaction_id", Message: "must be a UUID"}})
		return
	}
	mode := domain.ReceiptMode(req.Mode)
	if !mode.IsValid() {
		RespondValidationError(w, []FieldError{{Field: "mode", Message: "must be PRINT, EMAIL, or NONE"}})
		return
	}

	txn, err := h.store.TransactionByID(r.Context(), txnID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	receipt := &domain.Receipt{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		Mode:          mode,
		Content:       renderReceipt(txn, sess.MaskedPAN),
		CreatedAt:     time.Now().UTC(),
	}
	if mode == domain.ReceiptModeEmail {
		email := req.Email
		if email == "" {
			email = sess.Preferences.Email
		}
		if email == "" {
			RespondValidationError(w, []FieldError{{Field: "email", Message: "required for EMAIL mode"}})
			return
		}
		receipt.Email = &email
	}

	if err := h.store.CreateReceipt(r.Context(), receipt); err != nil {
		RespondDomainError(w, err)
		return
	}

	if receipt.Email != nil {
		logging.FromContext(r.Context()).Info("receipt emailed",
			"receipt_id", receipt.ID,
			"transaction_id", txn.ID,
		)
	}
	RespondSuccess(w, http.StatusCreated, receiptResponse{
		ReceiptID: receipt.ID.String(),
		Mode:      string(receipt.Mode),
		Content:   receipt.Content,
	})
}

func renderReceipt(t *domain.Transaction, maskedPAN string) string {
	return fmt.Sprintf(
		"CONVERSANT BANK ATM\n%s\nCard: %s\n%s %s %s\nStatus: %s\nRef: %s\n",
		t.Timestamp.Format("2006-01-02 15:04:05"),
		maskedPAN,
		t.Operation,
		t.Amount.StringFixed(2),
		t.Currency,
		t.Status,
		t.ID,
	)
}
