// mock-llm is a scripted Ollama-compatible chat endpoint for local
// development without a model running. It answers /api/chat with canned tool
// calls driven by simple keyword matching on the last user message.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/conversant-bank/atm-backend/internal/logging"
	"github.com/conversant-bank/atm-backend/internal/orchestrator/ollama"
)

var amountPattern = regexp.MustCompile(`\$?(\d+(?:\.\d{1,2})?)`)

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []ollama.Message `json:"messages"`
}

type chatResponse struct {
	Message ollama.Message `json:"message"`
	Done    bool           `json:"done"`
}

func main() {
	logging.Init("mock-llm", "info", os.Getenv("APP_ENV"))

	addr := ":11434"
	if v := os.Getenv("MOCK_LLM_ADDR"); v != "" {
		addr = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("POST /api/chat", handleChat)

	slog.Info("mock llm started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	msg := script(req.Messages)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatResponse{Message: msg, Done: true}); err != nil {
		slog.Error("failed to write chat response", "error", err)
	}
}

// script drives a minimal but realistic tool-calling exchange: the first user
// turn mentioning an operation triggers the matching tool call, a tool result
// gets summarized back as text.
func script(messages []ollama.Message) ollama.Message {
	if len(messages) == 0 {
		return textMessage("Hello! How can I help you today?")
	}

	last := messages[len(messages)-1]
	if last.Role == ollama.RoleTool {
		return summarizeToolResult(last.Content)
	}

	lower := strings.ToLower(lastUserContent(messages))
	switch {
	case strings.Contains(lower, "balance"), strings.Contains(lower, "how much"):
		return toolMessage("get_accounts", map[string]any{})
	case strings.Contains(lower, "withdraw"):
		args := map[string]any{"operation": "WITHDRAW"}
		if m := amountPattern.FindStringSubmatch(lower); m != nil {
			args["amount"] = m[1]
		}
		return toolMessage("create_transaction_intent", args)
	case strings.Contains(lower, "transfer"):
		args := map[string]any{"operation": "TRANSFER"}
		if m := amountPattern.FindStringSubmatch(lower); m != nil {
			args["amount"] = m[1]
		}
		return toolMessage("create_transaction_intent", args)
	case strings.Contains(lower, "deposit"):
		args := map[string]any{"operation": "DEPOSIT"}
		if m := amountPattern.FindStringSubmatch(lower); m != nil {
			args["amount"] = m[1]
		}
		return toolMessage("create_transaction_intent", args)
	default:
		return textMessage("I can help you check balances, withdraw, deposit, or transfer money. What would you like to do?")
	}
}

func lastUserContent(messages []ollama.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ollama.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func summarizeToolResult(content string) ollama.Message {
	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return textMessage("Something went wrong, please try again.")
	}
	if errMsg, ok := payload["error"].(string); ok {
		return textMessage("I'm sorry, that didn't work: " + errMsg)
	}
	if _, ok := payload["accounts"]; ok {
		return textMessage("Here are your accounts and balances.")
	}
	if questions, ok := payload["questions"].([]any); ok && len(questions) > 0 {
		if q, ok := questions[0].(string); ok {
			return textMessage(q)
		}
	}
	if _, ok := payload["transaction_id"]; ok {
		return textMessage("Done! Your transaction is complete.")
	}
	return textMessage("All set. Anything else?")
}

func textMessage(content string) ollama.Message {
	return ollama.Message{Role: ollama.RoleAssistant, Content: content}
}

func toolMessage(name string, args map[string]any) ollama.Message {
	raw, _ := json.Marshal(args)
	return ollama.Message{
		Role: ollama.RoleAssistant,
		ToolCalls: []ollama.ToolCall{
			{Function: ollama.ToolCallFunction{Name: name, Arguments: raw}},
		},
	}
}
