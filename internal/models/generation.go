package models

import (
	"time"

	"github.com/google/uuid"
)

// Generation status enums. PENDING/PROCESSING are non-terminal; COMPLETED and
// FAILED are terminal and never re-opened by the reconciler.
const (
	GenerationStatusPending    = "PENDING"
	GenerationStatusProcessing = "PROCESSING"
	GenerationStatusCompleted  = "COMPLETED"
	GenerationStatusFailed     = "FAILED"
)

// Generation is one 3D-generation request. FalRequestID is the remote job
// handle, nil until submission succeeds. Metadata is a free-form audit bag
// (sync errors, timestamps, notification flags).
type Generation struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Prompt       string         `json:"prompt"`
	Endpoint     string         `json:"endpoint"`
	Status       string         `json:"status"`
	FalRequestID *string        `json:"fal_request_id,omitempty"`
	ModelURL     *string        `json:"model_url,omitempty"`
	CreditsUsed  int            `json:"credits_used"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}
