package handler

import "net/http"

type Handlers struct {
	Phase       *PhaseHandler
	Account     *AccountHandler
	Intent      *IntentHandler
	Transaction *TransactionHandler
	Flow        *FlowHandler
	Chat        *ChatHandler
	Receipt     *ReceiptHandler
	Health      *HealthHandler
}

// Register wires every route onto the mux. authed wraps the routes that
// require a session token; login and health stay open.
func Register(mux *http.ServeMux, h Handlers, authed func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /health", h.Health.Liveness)
	mux.HandleFunc("GET /health/ready", h.Health.Readiness)

	mux.HandleFunc("POST /auth/login", h.Phase.Login)

	protect := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authed(fn))
	}

	protect("POST /preferences", h.Phase.Preferences)
	protect("POST /auth/pin-validation", h.Phase.PinValidation)
	protect("POST /account-overview/finalize", h.Phase.Finalize)
	protect("POST /transactions/withdrawal/authorize", h.Phase.WithdrawalAuthorize)

	protect("GET /accounts/summary", h.Account.Summary)
	protect("GET /accounts/{account_id}/details", h.Account.Details)

	protect("POST /intents", h.Intent.Create)
	protect("PATCH /intents/{intent_id}", h.Intent.Update)
	protect("POST /intents/{intent_id}/cancel", h.Intent.Cancel)
	protect("POST /intents/{intent_id}/execute", h.Intent.Execute)

	protect("POST /transactions/withdraw", h.Transaction.Withdraw)
	protect("POST /transactions/deposit", h.Transaction.Deposit)
	protect("POST /transactions/transfer", h.Transaction.Transfer)

	protect("GET /flows/{flow_id}", h.Flow.Get)
	protect("POST /flows/{flow_id}/interrupt", h.Flow.Interrupt)

	protect("POST /channels/web/chat", h.Chat.Chat)

	protect("POST /receipts", h.Receipt.Create)
}
