package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	Email              string    `json:"email" db:"email"`
	Name               *string   `json:"name,omitempty" db:"name"`
	Image              *string   `json:"image,omitempty" db:"image"`
	Bio                *string   `json:"bio,omitempty" db:"bio"`
	Role               *string   `json:"role,omitempty" db:"role"`
	Tier               *string   `json:"tier,omitempty" db:"tier"`
	Credits            *int      `json:"credits,omitempty" db:"credits"`
	EmailNotifications bool      `json:"email_notifications" db:"email_notifications"`
	MarketingEmails    bool      `json:"marketing_emails" db:"marketing_emails"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// UserProfile is a partial update; nil fields are left untouched.
type UserProfile struct {
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
	Bio   *string `json:"bio,omitempty"`
	Role  *string `json:"role,omitempty"`
}

type UserPreferences struct {
	EmailNotifications *bool `json:"email_notifications,omitempty"`
	MarketingEmails    *bool `json:"marketing_emails,omitempty"`
}
