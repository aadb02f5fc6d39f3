package model

import (
	"time"

	"github.com/google/uuid"
)

// Known external identity providers.
const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// AuthProvider links a user to an identity held by an external provider.
// (Provider, ProviderUID) is unique.
type AuthProvider struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Provider     string     `json:"provider"`
	ProviderUID  string     `json:"provider_uid"`
	AccessToken  *string    `json:"-"`
	RefreshToken *string    `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
