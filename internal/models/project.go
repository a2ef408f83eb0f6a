package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	OrgID       uuid.UUID  `json:"org_id" db:"org_id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	Thumbnail   *string    `json:"thumbnail,omitempty" db:"thumbnail"`
	IsPublic    bool       `json:"is_public" db:"is_public"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Scene struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProjectID   uuid.UUID `json:"project_id" db:"project_id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Order       int       `json:"order" db:"order"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type FrameStatus string

const (
	FrameStatusPending    FrameStatus = "pending"
	FrameStatusGenerating FrameStatus = "generating"
	FrameStatusComplete   FrameStatus = "complete"
	FrameStatusFailed     FrameStatus = "failed"
)

func (s FrameStatus) Valid() bool {
	switch s {
	case FrameStatusPending, FrameStatusGenerating, FrameStatusComplete, FrameStatusFailed:
		return true
	}
	return false
}

type Frame struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	SceneID        uuid.UUID   `json:"scene_id" db:"scene_id"`
	Order          int         `json:"order" db:"order"`
	Prompt         string      `json:"prompt" db:"prompt"`
	Status         FrameStatus `json:"status" db:"status"`
	ImageStorageID *string     `json:"image_storage_id,omitempty" db:"image_storage_id"`
	ImageURL       *string     `json:"image_url,omitempty" db:"-"`
	AssetIDs       []uuid.UUID `json:"asset_ids,omitempty" db:"asset_ids"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}
