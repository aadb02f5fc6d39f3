// Package model defines domain entities for the application.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Column limits shared by validation and the schema.
const (
	MaxUsernameLength    = 32
	MaxEmailLength       = 255
	MaxDisplayNameLength = 64
	MaxProviderLength    = 32
	MaxProviderUIDLength = 255
)

// User is an account. ID and Username never change once written.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash *string    `json:"-"` // nil for external-auth accounts
	IsVerified   bool       `json:"is_verified"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewUser returns an active, unverified user with a fresh ID and timestamps.
func NewUser(username, email string, now time.Time) *User {
	now = now.UTC()
	return &User{
		ID:         uuid.New(),
		Username:   username,
		Email:      email,
		IsActive:   true,
		IsVerified: false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// SetPasswordHash stores an already-hashed password.
func (u *User) SetPasswordHash(hash string) {
	u.PasswordHash = &hash
}
