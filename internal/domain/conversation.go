package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type MessageSender string

const (
	SenderUser      MessageSender = "USER"
	SenderAssistant MessageSender = "ASSISTANT"
	SenderSystem    MessageSender = "SYSTEM"
)

// ConversationMessage is one entry in the append-only per-session chat log.
type ConversationMessage struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Sender    MessageSender
	Content   string
	Metadata  json.RawMessage
	CreatedAt time.Time
}
