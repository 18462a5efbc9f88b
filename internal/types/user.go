package types

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Email is stored lower-cased and is unique.
type User struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	IsAccountVerified bool      `json:"isAccountVerified"`
	IsAdmin           bool      `json:"isAdmin"`
	Bio               string    `json:"bio"`
	ProfilePhotoURL   string    `json:"profilePhoto"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// State reports where the account sits in the verification state machine.
func (u *User) State() AccountState {
	if u.IsAccountVerified {
		return StateVerified
	}
	return StateUnverified
}

// CreateUserParams carries an already-hashed credential; raw passwords never
// reach the repository layer.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
}

// UpdateProfileParams defines the fields allowed for profile updates.
// Nil pointers leave the column untouched.
type UpdateProfileParams struct {
	Username        *string `json:"username,omitempty" validate:"omitempty,min=2,max=100"`
	Bio             *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	ProfilePhotoURL *string `json:"profilePhoto,omitempty" validate:"omitempty,url"`
}

// Empty reports whether the update would change nothing.
func (p UpdateProfileParams) Empty() bool {
	return p.Username == nil && p.Bio == nil && p.ProfilePhotoURL == nil
}
