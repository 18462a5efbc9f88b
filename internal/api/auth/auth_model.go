package auth

import (
	"strings"

	"github.com/google/uuid"
)

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=100"`    // Display name.
	Email    string `json:"email" validate:"required,min=5,max=100,email"` // Must be unique.
	Password string `json:"password" validate:"required,min=8"`            // Stored as a bcrypt hash.
}

func (r *RegisterRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	r.Password = strings.TrimSpace(r.Password)
}

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,min=5,max=100,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
	r.Password = strings.TrimSpace(r.Password)
}

// LoginResponse is returned on a successful login of a verified account.
type LoginResponse struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	IsAdmin      bool      `json:"isAdmin"`
	ProfilePhoto string    `json:"profilePhoto"`
	Token        string    `json:"token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
