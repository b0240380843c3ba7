package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/intent"
	"github.com/conversant-bank/atm-backend/internal/logging"
	"github.com/conversant-bank/atm-backend/internal/orchestrator/ollama"
)

const (
	toolGetAccounts       = "get_accounts"
	toolGetAccountDetails = "get_account_details"
	toolCreateIntent      = "create_transaction_intent"
	toolUpdateIntent      = "update_transaction_intent"
	toolExecuteIntent     = "execute_transaction"
	toolGetFlow           = "get_flow"
	toolInterruptFlow     = "interrupt_flow"
)

// toolSpecs is the fixed tool surface exposed to the model. The model never
// sees PANs, PIN material, or another customer's data through any of these.
var toolSpecs = []ollama.Tool{
	{
		Type: "function",
		Function: ollama.ToolFunction{
			Name:        toolGetAccounts,
			Description: "List the customer's accounts with masked numbers and current balances.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
	},
	{
		Type: "function",
		Function: ollama.ToolFunction{
			Name:        toolGetAccountDetails,
			Description: "Get one account with its most recent transactions.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"account_id":{"type":"string"}},"required":["account_id"]}`),
		},
	},
	{
		Type: "function",
		Function: ollama.ToolFunction{
			Name:        toolCreateIntent,
			Description: "Start a transaction intent. Supply whatever fields the customer has given; missing ones come back with clarification questions.",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"operation":{"type":"string","enum":["WITHDRAW","DEPOSIT","CASH_DEPOSIT","CHECK_DEPOSIT","TRANSFER","PAYMENT","BILL_PAYMENT","BALANCE_INQUIRY","PIN_CHANGE"]},
				"from_account_id":{"type":"string"},
				"to_account_id":{"type":"string"},
				"amount":{"type":"string"},
				"payee":{"type":"string"},
				"confirm":{"type":"boolean"}},"required":["operation"]}`),
		},
	},
	{
		Type: "function",
		Function: ollama.ToolFunction{
			Name:        toolUpdateIntent,
			Description: "Add or change fields on an existing intent, including the final confirmation.",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"intent_id":{"type":"string"},
				"from_account_id":{"type":"string"},
				"to_account_id":{"type":"string"},
				"amount":{"type":"string"},
				"payee":{"type":"string"},
				"confirm":{"type":"boolean"}},"required":["intent_id"]}`),
		},
	},
	{
		Type: "function",
		Function: ollama.ToolFunction{
			Name:        toolExecuteIntent,
			Description: "Execute a confirmed intent. Only READY_TO_EXECUTE intents are accepted.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"intent_id":{"type":"string"}},"required":["intent_id"]}`),
		},
	},
	{
		Type: "function",
		Function: ollama.ToolFunction{
			Name:        toolGetFlow,
			Description: "Get the screen flow for an intent that is executing.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"intent_id":{"type":"string"}},"required":["intent_id"]}`),
		},
	},
	{
		Type: "function",
		Function: ollama.ToolFunction{
			Name:        toolInterruptFlow,
			Description: "Interrupt a pending flow so the customer can change their mind. Captured answers are kept; confirmation is cleared.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"flow_id":{"type":"string"}},"required":["flow_id"]}`),
		},
	},
}

type toolArgs struct {
	Operation     string `json:"operation"`
	AccountID     string `json:"account_id"`
	IntentID      string `json:"intent_id"`
	FlowID        string `json:"flow_id"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Payee         string `json:"payee"`
	Confirm       *bool  `json:"confirm"`
}

// dispatch runs one tool call under its own deadline and always returns a
// JSON payload for the model. Domain rejections become structured error
// payloads the model can relay; they never abort the conversation.
func (o *Orchestrator) dispatch(ctx context.Context, sess *domain.Session, call ollama.ToolCall) json.RawMessage {
	ctx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	defer cancel()

	var args toolArgs
	if len(call.Function.Arguments) > 0 {
		if err := json.Unmarshal(call.Function.Arguments, &args); err != nil {
			return errPayload(fmt.Errorf("bad arguments: %w", domain.ErrValidation))
		}
	}

	out, err := o.runTool(ctx, sess, call.Function.Name, args)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%s: %w", call.Function.Name, domain.ErrToolTimeout)
		}
		logging.FromContext(ctx).Warn("tool call rejected",
			"tool", call.Function.Name,
			"error", err,
		)
		return errPayload(err)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return errPayload(err)
	}
	return payload
}

func (o *Orchestrator) runTool(ctx context.Context, sess *domain.Session, name string, args toolArgs) (any, error) {
	switch name {
	case toolGetAccounts:
		return o.accountList(ctx, sess)
	case toolGetAccountDetails:
		return o.accountDetails(ctx, sess, args)
	case toolCreateIntent:
		return o.createIntent(ctx, sess, args)
	case toolUpdateIntent:
		return o.updateIntent(ctx, sess, args)
	case toolExecuteIntent:
		return o.executeIntent(ctx, sess, args)
	case toolGetFlow:
		return o.getFlow(ctx, args)
	case toolInterruptFlow:
		return o.interruptFlow(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool %q: %w", name, domain.ErrValidation)
	}
}

type accountSummary struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	MaskedNumber string `json:"masked_number"`
	Balance      string `json:"balance"`
	Currency     string `json:"currency"`
}

func summarizeAccount(a domain.Account) accountSummary {
	return accountSummary{
		ID:           a.ID.String(),
		Type:         string(a.Type),
		Name:         a.Name,
		MaskedNumber: a.MaskedNumber,
		Balance:      a.Balance.StringFixed(2),
		Currency:     a.Currency,
	}
}

func (o *Orchestrator) accountList(ctx context.Context, sess *domain.Session) (any, error) {
	accounts, err := o.store.AccountsByCustomer(ctx, sess.CustomerID)
	if err != nil {
		return nil, err
	}
	out := make([]accountSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, summarizeAccount(a))
	}
	return map[string]any{"accounts": out}, nil
}

func (o *Orchestrator) accountDetails(ctx context.Context, sess *domain.Session, args toolArgs) (any, error) {
	id, err := uuid.Parse(args.AccountID)
	if err != nil {
		return nil, fmt.Errorf("account_id: %w", domain.ErrValidation)
	}
	acct, err := o.store.AccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct.CustomerID != sess.CustomerID {
		return nil, domain.ErrNotFound
	}

	txns, err := o.store.TransactionsByAccount(ctx, acct.ID, recentTransactionCount)
	if err != nil {
		return nil, err
	}
	history := make([]map[string]string, 0, len(txns))
	for _, t := range txns {
		history = append(history, map[string]string{
			"operation": string(t.Operation),
			"amount":    t.Amount.StringFixed(2),
			"currency":  t.Currency,
			"status":    string(t.Status),
			"timestamp": t.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}
	return map[string]any{
		"account":      summarizeAccount(*acct),
		"transactions": history,
	}, nil
}

func intentAnswers(args toolArgs) map[string]string {
	answers := make(map[string]string)
	if args.FromAccountID != "" {
		answers[intent.FieldFromAccount] = args.FromAccountID
	}
	if args.ToAccountID != "" {
		answers[intent.FieldToAccount] = args.ToAccountID
	}
	if args.Amount != "" {
		answers[intent.FieldAmount] = args.Amount
	}
	if args.Payee != "" {
		answers[intent.FieldPayee] = args.Payee
	}
	if args.Confirm != nil && *args.Confirm {
		answers[intent.FieldConfirm] = "true"
	}
	return answers
}

func intentView(i *domain.TransactionIntent) map[string]any {
	return map[string]any{
		"intent_id":      i.ID.String(),
		"operation":      string(i.Operation),
		"status":         string(i.Status),
		"missing_fields": i.MissingFields,
		"questions":      intent.ClarificationQuestions(i.MissingFields),
	}
}

func (o *Orchestrator) createIntent(ctx context.Context, sess *domain.Session, args toolArgs) (any, error) {
	op := domain.Operation(args.Operation)
	answers := intentAnswers(args)
	if op == domain.OperationBalanceInquiry && args.AccountID != "" {
		answers[intent.FieldAccount] = args.AccountID
	}
	i, err := o.engine.Create(ctx, sess, op, answers)
	if err != nil {
		return nil, err
	}
	return intentView(i), nil
}

func (o *Orchestrator) updateIntent(ctx context.Context, sess *domain.Session, args toolArgs) (any, error) {
	id, err := uuid.Parse(args.IntentID)
	if err != nil {
		return nil, fmt.Errorf("intent_id: %w", domain.ErrValidation)
	}
	i, err := o.engine.Update(ctx, sess, id, intentAnswers(args))
	if err != nil {
		return nil, err
	}
	return intentView(i), nil
}

func (o *Orchestrator) executeIntent(ctx context.Context, sess *domain.Session, args toolArgs) (any, error) {
	id, err := uuid.Parse(args.IntentID)
	if err != nil {
		return nil, fmt.Errorf("intent_id: %w", domain.ErrValidation)
	}
	res, err := o.exec.ExecuteIntent(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"response_code": string(domain.CodeForError(nil)),
		"balances":      stringBalances(res.Balances),
	}
	if res.Transaction != nil {
		out["transaction_id"] = res.Transaction.ID.String()
		out["status"] = string(res.Transaction.Status)
	}
	if res.RemainingLimit != nil {
		out["remaining_daily_limit"] = res.RemainingLimit.StringFixed(2)
	}
	if res.Flow != nil {
		out["flow_id"] = res.Flow.ID.String()
	}
	return out, nil
}

func (o *Orchestrator) getFlow(ctx context.Context, args toolArgs) (any, error) {
	id, err := uuid.Parse(args.IntentID)
	if err != nil {
		return nil, fmt.Errorf("intent_id: %w", domain.ErrValidation)
	}
	f, err := o.flows.GetByIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	return flowView(f), nil
}

func (o *Orchestrator) interruptFlow(ctx context.Context, args toolArgs) (any, error) {
	id, err := uuid.Parse(args.FlowID)
	if err != nil {
		return nil, fmt.Errorf("flow_id: %w", domain.ErrValidation)
	}
	f, i, err := o.flows.Interrupt(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"flow":   flowView(f),
		"intent": intentView(i),
	}, nil
}

func flowView(f *domain.ScreenFlow) map[string]any {
	return map[string]any{
		"flow_id": f.ID.String(),
		"status":  string(f.Status),
		"steps":   f.Steps,
	}
}

func stringBalances(balances map[uuid.UUID]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(balances))
	for id, b := range balances {
		out[id.String()] = b.StringFixed(2)
	}
	return out
}

// errPayload renders a tool failure the model can explain to the customer.
// The ISO-style response code travels with it so scripted clients can assert
// on the exact rejection.
func errPayload(err error) json.RawMessage {
	payload, _ := json.Marshal(map[string]string{
		"error":         err.Error(),
		"response_code": string(domain.CodeForError(err)),
	})
	return payload
}
