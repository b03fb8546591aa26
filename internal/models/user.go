package models

import (
	"time"

	"github.com/google/uuid"
)

// User as it stored in credential store
// Contains sensitive fields, never attach it to request context or render it
type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string
	Email          string
	HashedPassword string

	// Currently live refresh token. Nil if user logged out or never logged in
	RefreshToken *string
}

// Info returns non-sensitive part of the user
func (u User) Info() UserInfo {
	return UserInfo{
		ID:        u.ID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Username:  u.Username,
		Email:     u.Email,
	}
}

// Non-sensitive user projection: safe to attach to request context and render
type UserInfo struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
}
