package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversant-bank/atm-backend/internal/auth"
	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/executor"
	"github.com/conversant-bank/atm-backend/internal/flow"
	"github.com/conversant-bank/atm-backend/internal/intent"
	"github.com/conversant-bank/atm-backend/internal/limits"
	"github.com/conversant-bank/atm-backend/internal/orchestrator/ollama"
	"github.com/conversant-bank/atm-backend/internal/store/memory"
	"github.com/conversant-bank/atm-backend/internal/testutil"
)

// scriptedLLM plays back a fixed list of model turns and records what it saw.
type scriptedLLM struct {
	turns []func(messages []ollama.Message) (*ollama.Message, error)
	seen  [][]ollama.Message
}

func (s *scriptedLLM) Chat(_ context.Context, messages []ollama.Message, _ []ollama.Tool) (*ollama.Message, error) {
	s.seen = append(s.seen, messages)
	if len(s.turns) == 0 {
		return &ollama.Message{Role: ollama.RoleAssistant, Content: "out of script"}, nil
	}
	turn := s.turns[0]
	s.turns = s.turns[1:]
	return turn(messages)
}

func textTurn(content string) func([]ollama.Message) (*ollama.Message, error) {
	return func([]ollama.Message) (*ollama.Message, error) {
		return &ollama.Message{Role: ollama.RoleAssistant, Content: content}, nil
	}
}

func toolTurn(name string, args map[string]any) func([]ollama.Message) (*ollama.Message, error) {
	raw, _ := json.Marshal(args)
	return func([]ollama.Message) (*ollama.Message, error) {
		return &ollama.Message{
			Role: ollama.RoleAssistant,
			ToolCalls: []ollama.ToolCall{
				{Function: ollama.ToolCallFunction{Name: name, Arguments: raw}},
			},
		}, nil
	}
}

type orchFixture struct {
	store *memory.Store
	sess  *domain.Session
	acct  *domain.Account
	llm   *scriptedLLM
	orch  *Orchestrator
}

func setupOrchestrator(t *testing.T, turns ...func([]ollama.Message) (*ollama.Message, error)) *orchFixture {
	t.Helper()
	st := memory.New()
	customer, card := testutil.SeedCustomer(t, st)
	acct := testutil.SeedAccount(t, st, customer.ID, domain.AccountTypeChecking, "2500.00")
	sess := testutil.SeedSession(t, st, customer, card)

	engine := intent.NewEngine(st)
	flows := flow.NewController(st)
	exec := executor.New(st, limits.NewTracker(st), flows, auth.HashPIN)
	llm := &scriptedLLM{turns: turns}

	return &orchFixture{
		store: st,
		sess:  sess,
		acct:  acct,
		llm:   llm,
		orch:  New(st, engine, exec, flows, llm, 6, time.Second),
	}
}

func TestHandleMessage_PlainReplyIsStored(t *testing.T) {
	f := setupOrchestrator(t, textTurn("Hello! How can I help?"))

	reply, err := f.orch.HandleMessage(context.Background(), f.sess, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", reply)

	msgs, err := f.store.RecentMessages(context.Background(), f.sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.SenderUser, msgs[0].Sender)
	assert.Equal(t, domain.SenderAssistant, msgs[1].Sender)

	// The model sees the system prompt first, then the history.
	require.NotEmpty(t, f.llm.seen)
	assert.Equal(t, ollama.RoleSystem, f.llm.seen[0][0].Role)
	assert.Contains(t, f.llm.seen[0][0].Content, `"en"`)
}

func TestHandleMessage_ToolResultFedBackToModel(t *testing.T) {
	f := setupOrchestrator(t,
		toolTurn("get_accounts", map[string]any{}),
		textTurn("Your checking account holds $2500.00."),
	)

	reply, err := f.orch.HandleMessage(context.Background(), f.sess, "what's my balance?")
	require.NoError(t, err)
	assert.Equal(t, "Your checking account holds $2500.00.", reply)

	// Second model turn carries the assistant tool call plus the tool result.
	require.Len(t, f.llm.seen, 2)
	second := f.llm.seen[1]
	last := second[len(second)-1]
	assert.Equal(t, ollama.RoleTool, last.Role)
	assert.Contains(t, last.Content, f.acct.MaskedNumber)
	assert.Contains(t, last.Content, "2500.00")
}

func TestHandleMessage_FullWithdrawalViaTools(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	i := testutil.SeedReadyIntent(t, f.store, f.sess, f.acct, "100.00")
	f.llm.turns = []func([]ollama.Message) (*ollama.Message, error){
		toolTurn("execute_transaction", map[string]any{"intent_id": i.ID.String()}),
		textTurn("Done, $100.00 dispensed."),
	}

	reply, err := f.orch.HandleMessage(ctx, f.sess, "yes, go ahead")
	require.NoError(t, err)
	assert.Equal(t, "Done, $100.00 dispensed.", reply)

	acct, err := f.store.AccountByID(ctx, f.acct.ID)
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(decimal.RequireFromString("2400.00")))

	second := f.llm.seen[1]
	last := second[len(second)-1]
	assert.Contains(t, last.Content, `"response_code":"00"`)
	assert.Contains(t, last.Content, "transaction_id")
}

func TestHandleMessage_ToolErrorBecomesPayloadNotFailure(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	i := testutil.SeedReadyIntent(t, f.store, f.sess, f.acct, "9999.00")
	f.llm.turns = []func([]ollama.Message) (*ollama.Message, error){
		toolTurn("execute_transaction", map[string]any{"intent_id": i.ID.String()}),
		textTurn("That's over your daily limit, sorry."),
	}

	reply, err := f.orch.HandleMessage(ctx, f.sess, "withdraw it all")
	require.NoError(t, err)
	assert.Equal(t, "That's over your daily limit, sorry.", reply)

	second := f.llm.seen[1]
	last := second[len(second)-1]
	assert.Equal(t, ollama.RoleTool, last.Role)
	assert.Contains(t, last.Content, `"response_code":"51"`)
	assert.Contains(t, last.Content, "error")
}

func TestHandleMessage_IterationCapYieldsApology(t *testing.T) {
	loop := toolTurn("get_accounts", map[string]any{})
	f := setupOrchestrator(t, loop, loop, loop, loop, loop, loop, loop)

	reply, err := f.orch.HandleMessage(context.Background(), f.sess, "hmm")
	require.NoError(t, err)
	assert.Contains(t, reply, "couldn't complete")
	assert.Len(t, f.llm.seen, 6)
}

func TestHandleMessage_LLMUnavailableFailsFast(t *testing.T) {
	f := setupOrchestrator(t, func([]ollama.Message) (*ollama.Message, error) {
		return nil, domain.ErrLLMUnavailable
	})

	_, err := f.orch.HandleMessage(context.Background(), f.sess, "hi")
	require.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestHandleMessage_ToolResultsRecordedAsSystemRows(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	i := testutil.SeedReadyIntent(t, f.store, f.sess, f.acct, "9999.00")
	f.llm.turns = []func([]ollama.Message) (*ollama.Message, error){
		toolTurn("execute_transaction", map[string]any{"intent_id": i.ID.String()}),
		textTurn("That's over your daily limit, sorry."),
	}

	_, err := f.orch.HandleMessage(ctx, f.sess, "withdraw it all")
	require.NoError(t, err)

	msgs, err := f.store.RecentMessages(ctx, f.sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, domain.SenderSystem, msgs[1].Sender)
	assert.Contains(t, msgs[1].Content, `"response_code":"51"`)
	assert.Contains(t, string(msgs[1].Metadata), "execute_transaction")

	// The audit row stays out of the next turn's model input.
	f.llm.turns = []func([]ollama.Message) (*ollama.Message, error){textTurn("Anything else?")}
	_, err = f.orch.HandleMessage(ctx, f.sess, "never mind")
	require.NoError(t, err)
	for _, m := range f.llm.seen[len(f.llm.seen)-1] {
		assert.NotContains(t, m.Content, `"response_code":"51"`)
	}
}

// stallingStore blocks account listing until the tool deadline fires.
type stallingStore struct {
	*memory.Store
}

func (s *stallingStore) AccountsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Account, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHandleMessage_SlowToolBecomesTimeoutPayload(t *testing.T) {
	st := memory.New()
	customer, card := testutil.SeedCustomer(t, st)
	sess := testutil.SeedSession(t, st, customer, card)

	llm := &scriptedLLM{turns: []func([]ollama.Message) (*ollama.Message, error){
		toolTurn("get_accounts", map[string]any{}),
		textTurn("I'm having trouble reaching your accounts right now."),
	}}
	flows := flow.NewController(st)
	exec := executor.New(st, limits.NewTracker(st), flows, auth.HashPIN)
	orch := New(&stallingStore{Store: st}, intent.NewEngine(st), exec, flows, llm, 6, 20*time.Millisecond)

	reply, err := orch.HandleMessage(context.Background(), sess, "what do I have?")
	require.NoError(t, err)
	assert.Equal(t, "I'm having trouble reaching your accounts right now.", reply)

	require.Len(t, llm.seen, 2)
	second := llm.seen[1]
	last := second[len(second)-1]
	assert.Equal(t, ollama.RoleTool, last.Role)
	assert.Contains(t, last.Content, domain.ErrToolTimeout.Error())
	assert.Contains(t, last.Content, `"response_code":"91"`)
}

func TestHandleMessage_UnknownToolRejected(t *testing.T) {
	f := setupOrchestrator(t,
		toolTurn("rob_the_bank", map[string]any{}),
		textTurn("I can't do that."),
	)

	reply, err := f.orch.HandleMessage(context.Background(), f.sess, "do something odd")
	require.NoError(t, err)
	assert.Equal(t, "I can't do that.", reply)

	second := f.llm.seen[1]
	last := second[len(second)-1]
	assert.Contains(t, last.Content, "unknown tool")
}
