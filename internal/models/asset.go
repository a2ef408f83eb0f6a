package models

import (
	"time"

	"github.com/google/uuid"
)

type AssetType string

const (
	AssetCharacter   AssetType = "character"
	AssetEnvironment AssetType = "environment"
	AssetProp        AssetType = "prop"
	AssetStyle       AssetType = "style"
)

func (t AssetType) Valid() bool {
	switch t {
	case AssetCharacter, AssetEnvironment, AssetProp, AssetStyle:
		return true
	}
	return false
}

type Asset struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	ProjectID       uuid.UUID      `json:"project_id" db:"project_id"`
	CategoryID      *uuid.UUID     `json:"category_id,omitempty" db:"category_id"`
	Type            AssetType      `json:"type" db:"type"`
	Name            string         `json:"name" db:"name"`
	Description     *string        `json:"description,omitempty" db:"description"`
	ReferenceImages []string       `json:"reference_images,omitempty" db:"reference_images"`
	ReferenceURLs   []string       `json:"reference_urls,omitempty" db:"-"`
	// PreviewURL is the first resolved reference image, or a generated
	// placeholder when there is none.
	PreviewURL      string         `json:"preview_url" db:"-"`
	Metadata        map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedBy       *uuid.UUID     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// AssetCategory is scoped to an organization, so it is shared by every
// project in that organization.
type AssetCategory struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OrgID       uuid.UUID `json:"org_id" db:"org_id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Icon        *string   `json:"icon,omitempty" db:"icon"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
