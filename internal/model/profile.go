package model

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the public face of a user. Each user has exactly one.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Bio         *string   `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProfile returns a profile for userID with a fresh ID and timestamps.
func NewProfile(userID uuid.UUID, displayName string, now time.Time) *Profile {
	now = now.UTC()
	return &Profile{
		ID:          uuid.New(),
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Account pairs a user with its profile.
type Account struct {
	User    *User    `json:"user"`
	Profile *Profile `json:"profile,omitempty"`
}
