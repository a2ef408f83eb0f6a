package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Generation records one image generation attempt for a frame. Rows are
// never updated after insert.
type Generation struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	FrameID        uuid.UUID   `json:"frame_id" db:"frame_id"`
	UserID         *uuid.UUID  `json:"user_id,omitempty" db:"user_id"`
	Prompt         string      `json:"prompt" db:"prompt"`
	Status         FrameStatus `json:"status" db:"status"`
	ImageStorageID *string     `json:"image_storage_id,omitempty" db:"image_storage_id"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

type ActivityLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrgID        uuid.UUID       `json:"org_id" db:"org_id"`
	UserID       *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Action       string          `json:"action" db:"action"`
	ResourceType string          `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
