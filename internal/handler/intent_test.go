package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intentPayload struct {
	IntentID               string   `json:"intent_id"`
	Operation              string   `json:"operation"`
	Status                 string   `json:"status"`
	Amount                 *string  `json:"amount"`
	MissingFields          []string `json:"missing_fields"`
	ClarificationQuestions []string `json:"clarification_questions"`
}

type executePayload struct {
	TransactionID   string            `json:"transaction_id"`
	Status          string            `json:"status"`
	ResponseCode    string            `json:"response_code"`
	UpdatedBalances map[string]string `json:"updated_balances"`
	RemainingLimit  *string           `json:"remaining_daily_limit"`
	FlowID          string            `json:"flow_id"`
}

func (ts *testServer) accountIDs(t *testing.T, token string) (checking, savings string) {
	t.Helper()
	code, env := ts.do(t, http.MethodGet, "/accounts/summary", token, nil)
	require.Equal(t, http.StatusOK, code)

	var resp struct {
		Accounts []struct {
			AccountID string `json:"account_id"`
			Type      string `json:"type"`
		} `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	for _, a := range resp.Accounts {
		switch a.Type {
		case "CHECKING":
			checking = a.AccountID
		case "SAVINGS":
			savings = a.AccountID
		}
	}
	require.NotEmpty(t, checking)
	require.NotEmpty(t, savings)
	return checking, savings
}

func TestIntentLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)

	// Free text opens the intent and pre-fills what it can.
	code, env := ts.do(t, http.MethodPost, "/intents", token, map[string]any{
		"natural_language_request": "I'd like to withdraw $100 from my checking account",
	})
	require.Equal(t, http.StatusCreated, code)

	var created intentPayload
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "WITHDRAW", created.Operation)
	assert.Equal(t, "PENDING_DETAILS", created.Status)
	require.NotNil(t, created.Amount)
	assert.Equal(t, "100.00", *created.Amount)
	assert.Equal(t, []string{"pinConfirmed"}, created.MissingFields)
	require.Len(t, created.ClarificationQuestions, 1)
	assert.Contains(t, created.ClarificationQuestions[0], "PIN")

	// Supplying the last slot is still not enough without the confirm flag.
	code, env = ts.do(t, http.MethodPatch, "/intents/"+created.IntentID, token, map[string]any{
		"answers": map[string]string{"pinConfirmed": "true"},
	})
	require.Equal(t, http.StatusOK, code)
	var updated intentPayload
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "PENDING_DETAILS", updated.Status)
	assert.Empty(t, updated.MissingFields)

	code, env = ts.do(t, http.MethodPatch, "/intents/"+created.IntentID, token, map[string]any{
		"answers": map[string]string{"confirm": "true"},
	})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "READY_TO_EXECUTE", updated.Status)

	code, env = ts.do(t, http.MethodPost, "/intents/"+created.IntentID+"/execute", token, nil)
	require.Equal(t, http.StatusOK, code)
	var executed executePayload
	require.NoError(t, json.Unmarshal(env.Data, &executed))
	assert.Equal(t, "00", executed.ResponseCode)
	assert.Equal(t, "COMPLETED", executed.Status)
	assert.NotEmpty(t, executed.TransactionID)
	require.NotNil(t, executed.RemainingLimit)
	assert.Equal(t, "400.00", *executed.RemainingLimit)

	checking, _ := ts.accountIDs(t, token)
	assert.Equal(t, "2400.00", executed.UpdatedBalances[checking])

	// The flow settled with the execution.
	require.NotEmpty(t, executed.FlowID)
	code, env = ts.do(t, http.MethodGet, "/flows/"+executed.FlowID, token, nil)
	require.Equal(t, http.StatusOK, code)
	var flowResp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &flowResp))
	assert.Equal(t, "COMPLETE", flowResp.Status)

	// A settled intent cannot run twice.
	code, env = ts.do(t, http.MethodPost, "/intents/"+created.IntentID+"/execute", token, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)
}

func TestIntentExecuteBeforeConfirmation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)

	code, env := ts.do(t, http.MethodPost, "/intents", token, map[string]any{
		"natural_language_request": "withdraw $50 from checking",
	})
	require.Equal(t, http.StatusCreated, code)
	var created intentPayload
	require.NoError(t, json.Unmarshal(env.Data, &created))

	code, env = ts.do(t, http.MethodPost, "/intents/"+created.IntentID+"/execute", token, nil)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTENT_NOT_READY", env.Error.Code)
}

func TestIntentCancel(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)

	code, env := ts.do(t, http.MethodPost, "/intents", token, map[string]any{
		"operation": "TRANSFER",
	})
	require.Equal(t, http.StatusCreated, code)
	var created intentPayload
	require.NoError(t, json.Unmarshal(env.Data, &created))

	code, env = ts.do(t, http.MethodPost, "/intents/"+created.IntentID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, code)
	var cancelled intentPayload
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, "CANCELLED", cancelled.Status)

	code, env = ts.do(t, http.MethodPatch, "/intents/"+created.IntentID, token, map[string]any{
		"answers": map[string]string{"amount": "10.00"},
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)
}

func TestIntentUnparseableUtterance(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)

	code, env := ts.do(t, http.MethodPost, "/intents", token, map[string]any{
		"natural_language_request": "sing me a song",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestIntentsRequireFinalizedSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	code, env := ts.do(t, http.MethodPost, "/intents", token, map[string]any{
		"operation": "WITHDRAW",
	})
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SEQUENCE_ERROR", env.Error.Code)
}

func TestStructuredTransferEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)
	checking, savings := ts.accountIDs(t, token)

	code, env := ts.do(t, http.MethodPost, "/transactions/transfer", token, map[string]any{
		"from_account_id": checking,
		"to_account_id":   savings,
		"amount":          "250.00",
	})
	require.Equal(t, http.StatusOK, code)

	var executed executePayload
	require.NoError(t, json.Unmarshal(env.Data, &executed))
	assert.Equal(t, "COMPLETED", executed.Status)
	assert.Equal(t, "2250.00", executed.UpdatedBalances[checking])
	assert.Equal(t, "4450.00", executed.UpdatedBalances[savings])
}

func TestStructuredWithdrawValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)

	code, env := ts.do(t, http.MethodPost, "/transactions/withdraw", token, map[string]any{
		"from_account_id": "not-a-uuid",
		"amount":          "banana",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestAccountDetails(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)
	checking, _ := ts.accountIDs(t, token)

	code, env := ts.do(t, http.MethodGet, "/accounts/"+checking+"/details", token, nil)
	require.Equal(t, http.StatusOK, code)

	var resp struct {
		Account struct {
			Balance string `json:"balance"`
		} `json:"account"`
		Transactions []struct {
			Operation string `json:"operation"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "2500.00", resp.Account.Balance)
	// Seeded statement history: payroll, withdrawal, transfer, payment.
	assert.Len(t, resp.Transactions, 4)
}

func TestAccountDetailsOfOtherCustomer(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)

	// Maria's session sees only her own accounts; John's checking is opaque.
	checking, _ := ts.accountIDs(t, token)
	mariaToken := ts.authorizedTokenFor(t, "4222222222222222=06302011234567890", "NTY3OA==")

	code, env := ts.do(t, http.MethodGet, "/accounts/"+checking+"/details", mariaToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RESOURCE_NOT_FOUND", env.Error.Code)
}

func TestChatEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)
	ts.llm.reply = "Your checking balance is $2,500.00."

	code, env := ts.do(t, http.MethodPost, "/channels/web/chat", token, map[string]any{
		"message": "what's my balance?",
	})
	require.Equal(t, http.StatusOK, code)

	var resp struct {
		Reply string `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Your checking balance is $2,500.00.", resp.Reply)

	code, env = ts.do(t, http.MethodPost, "/channels/web/chat", token, map[string]any{"message": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestReceiptForCommittedTransaction(t *testing.T) {
	ts := newTestServer(t)
	token := ts.authorizedToken(t)
	checking, _ := ts.accountIDs(t, token)

	code, env := ts.do(t, http.MethodPost, "/transactions/withdraw", token, map[string]any{
		"from_account_id": checking,
		"amount":          "60.00",
	})
	require.Equal(t, http.StatusOK, code)
	var executed executePayload
	require.NoError(t, json.Unmarshal(env.Data, &executed))

	code, env = ts.do(t, http.MethodPost, "/receipts", token, map[string]any{
		"transaction_id": executed.TransactionID,
		"mode":           "EMAIL",
	})
	require.Equal(t, http.StatusCreated, code)

	var receipt struct {
		ReceiptID string `json:"receipt_id"`
		Mode      string `json:"mode"`
		Content   string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, "EMAIL", receipt.Mode)
	assert.Contains(t, receipt.Content, "WITHDRAW")
	assert.Contains(t, receipt.Content, "60.00")
	assert.Contains(t, receipt.Content, "****1111")
}
