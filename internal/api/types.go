// ABOUTME: Wire types shared by the toolbench client and the mock backend
// ABOUTME: Defines the uniform response envelope and auth/user payloads

package api

import (
	"encoding/json"
	"time"
)

// Envelope is the uniform wrapper around every backend response body.
// Data is left raw so callers can decode into their own payload type.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ErrorText returns the user-facing failure text for a failed envelope.
// Priority: message, then error, then the given fallback.
func (e *Envelope) ErrorText(fallback string) string {
	if e == nil {
		return fallback
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return fallback
}

// DecodeData unmarshals the envelope payload into out.
// A missing payload leaves out untouched.
func (e *Envelope) DecodeData(out any) error {
	if e == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}

// User is the backend's representation of an account.
// Replaced wholesale by a fresh fetch, never patched client-side.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Roles     []Role    `json:"roles,omitempty"`
}

// Role is a named permission group attached to a user.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// AuthTokens is the payload returned by login and refresh.
type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserCreate is the body for POST /auth/register.
type UserCreate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// RefreshRequest is the body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
