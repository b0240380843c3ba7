package domain

import (
	"time"

	"github.com/google/uuid"
)

type StepType string

const (
	StepTypeSelect     StepType = "SELECT"
	StepTypeConfirm    StepType = "CONFIRM"
	StepTypeProcessing StepType = "PROCESSING"
	StepTypeSuccess    StepType = "SUCCESS"
	StepTypeError      StepType = "ERROR"
)

type FlowStatus string

const (
	FlowStatusPending     FlowStatus = "PENDING"
	FlowStatusInterrupted FlowStatus = "INTERRUPTED"
	FlowStatusComplete    FlowStatus = "COMPLETE"
)

type FlowStep struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Type  StepType `json:"type"`
}

// ScreenFlow is the ordered step sequence rendered while an intent executes.
// Flows exist only for intents that have begun execution.
type ScreenFlow struct {
	ID        uuid.UUID
	IntentID  uuid.UUID
	Steps     []FlowStep
	Status    FlowStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
