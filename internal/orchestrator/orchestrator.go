// Package orchestrator drives the tool-calling conversation loop between the
// customer, the language model, and the banking core. The model proposes tool
// calls; every state change still goes through the same validation the
// structured endpoints use.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/domain"
	"github.com/conversant-bank/atm-backend/internal/executor"
	"github.com/conversant-bank/atm-backend/internal/flow"
	"github.com/conversant-bank/atm-backend/internal/intent"
	"github.com/conversant-bank/atm-backend/internal/logging"
	"github.com/conversant-bank/atm-backend/internal/orchestrator/ollama"
	"github.com/conversant-bank/atm-backend/internal/store"
)

const (
	historyWindow          = 20
	recentTransactionCount = 10
)

const systemPrompt = `You are the assistant of an ATM. You help the customer ` +
	`check balances and move money using the provided tools. Rules: use tools for ` +
	`every account fact, never invent balances or account numbers, refer to ` +
	`accounts only by type and masked number, never mention card numbers or PINs, ` +
	`and always get an explicit confirmation before executing a transaction. ` +
	`Answer in the customer's preferred language. Keep replies to one or two sentences.`

// Completer is the slice of the chat API the orchestrator needs. The Ollama
// client satisfies it in production; tests script it.
type Completer interface {
	Chat(ctx context.Context, messages []ollama.Message, tools []ollama.Tool) (*ollama.Message, error)
}

type Orchestrator struct {
	store         store.Store
	engine        *intent.Engine
	exec          *executor.Executor
	flows         *flow.Controller
	llm           Completer
	maxIterations int
	toolTimeout   time.Duration
	now           func() time.Time
}

func New(st store.Store, engine *intent.Engine, exec *executor.Executor, flows *flow.Controller, llm Completer, maxIterations int, toolTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		store:         st,
		engine:        engine,
		exec:          exec,
		flows:         flows,
		llm:           llm,
		maxIterations: maxIterations,
		toolTimeout:   toolTimeout,
		now:           time.Now,
	}
}

// HandleMessage runs one customer turn: it appends the message to the session
// log, loops model calls and tool executions until the model produces plain
// text or the iteration cap is hit, and returns the assistant's reply.
func (o *Orchestrator) HandleMessage(ctx context.Context, sess *domain.Session, text string) (string, error) {
	log := logging.FromContext(ctx)

	if err := o.appendMessage(ctx, sess.ID, domain.SenderUser, text, nil); err != nil {
		return "", fmt.Errorf("HandleMessage: %w", err)
	}

	messages, err := o.conversation(ctx, sess)
	if err != nil {
		return "", fmt.Errorf("HandleMessage: %w", err)
	}

	var toolCalls int
	for iter := 0; iter < o.maxIterations; iter++ {
		msg, err := o.llm.Chat(ctx, messages, toolSpecs)
		if err != nil {
			if errors.Is(err, domain.ErrLLMUnavailable) {
				return "", fmt.Errorf("HandleMessage: %w", err)
			}
			return "", fmt.Errorf("HandleMessage: %w: %w", err, domain.ErrLLMUnavailable)
		}

		if len(msg.ToolCalls) == 0 {
			reply := msg.Content
			meta, _ := json.Marshal(map[string]int{"tool_calls": toolCalls, "iterations": iter + 1})
			if err := o.appendMessage(ctx, sess.ID, domain.SenderAssistant, reply, meta); err != nil {
				return "", fmt.Errorf("HandleMessage: %w", err)
			}
			return reply, nil
		}

		messages = append(messages, *msg)
		for _, call := range msg.ToolCalls {
			toolCalls++
			log.Info("tool call",
				"tool", call.Function.Name,
				"iteration", iter+1,
			)
			result := o.dispatch(ctx, sess, call)
			// Every tool payload, including rejections with their response
			// code, lands in the session log as a SYSTEM row.
			meta, _ := json.Marshal(map[string]string{"tool": call.Function.Name})
			if err := o.appendMessage(ctx, sess.ID, domain.SenderSystem, string(result), meta); err != nil {
				return "", fmt.Errorf("HandleMessage: %w", err)
			}
			messages = append(messages, ollama.Message{
				Role:    ollama.RoleTool,
				Content: string(result),
			})
		}
	}

	log.Warn("iteration cap reached", "session_id", sess.ID, "tool_calls", toolCalls)
	reply := "I'm sorry, I couldn't complete that request. Please try again or use the on-screen menu."
	if err := o.appendMessage(ctx, sess.ID, domain.SenderAssistant, reply, nil); err != nil {
		return "", fmt.Errorf("HandleMessage: %w", err)
	}
	return reply, nil
}

// conversation rebuilds the model input from the stored history, oldest first,
// with the system prompt and the customer's language preference up front.
func (o *Orchestrator) conversation(ctx context.Context, sess *domain.Session) ([]ollama.Message, error) {
	history, err := o.store.RecentMessages(ctx, sess.ID, historyWindow)
	if err != nil {
		return nil, err
	}

	prompt := systemPrompt
	if lang := sess.Preferences.Language; lang != "" {
		prompt += fmt.Sprintf(" The customer's preferred language code is %q.", lang)
	}

	messages := make([]ollama.Message, 0, len(history)+1)
	messages = append(messages, ollama.Message{Role: ollama.RoleSystem, Content: prompt})
	for _, m := range history {
		// SYSTEM rows are the tool audit trail; the model only replays the
		// dialogue itself.
		if m.Sender == domain.SenderSystem {
			continue
		}
		role := ollama.RoleUser
		if m.Sender == domain.SenderAssistant {
			role = ollama.RoleAssistant
		}
		messages = append(messages, ollama.Message{Role: role, Content: m.Content})
	}
	return messages, nil
}

func (o *Orchestrator) appendMessage(ctx context.Context, sessionID uuid.UUID, sender domain.MessageSender, content string, metadata json.RawMessage) error {
	return o.store.AppendMessage(ctx, &domain.ConversationMessage{
		ID:        uuid.New(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: o.now().UTC(),
	})
}
