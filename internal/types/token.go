package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenPurpose is the intent a verification token was issued for.
type TokenPurpose string

const (
	PurposeVerifyAccount TokenPurpose = "verify"
	PurposeResetPassword TokenPurpose = "reset-password"
)

func (p TokenPurpose) Valid() bool {
	return p == PurposeVerifyAccount || p == PurposeResetPassword
}

// PathSegment is the client route segment links for this purpose live under.
func (p TokenPurpose) PathSegment() string {
	return string(p)
}

// VerificationToken is a single-use proof of control over the account email.
// At most one exists per (UserID, Purpose).
type VerificationToken struct {
	UserID    uuid.UUID    `json:"userId"`
	Purpose   TokenPurpose `json:"purpose"`
	Token     string       `json:"-"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func (t *VerificationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type AccountState string

const (
	StateUnverified AccountState = "unverified"
	StateVerified   AccountState = "verified"
)

// AccountMutation is the change a successful redemption applies to the
// owning account. There is deliberately no way to express un-verifying.
type AccountMutation struct {
	MarkVerified bool
	PasswordHash *string
}

// TransitionFor returns the account mutation for redeeming a token of the
// given purpose. A password reset proves control of the email address, so it
// also moves the account to StateVerified.
func TransitionFor(purpose TokenPurpose, newPasswordHash string) (AccountMutation, error) {
	switch purpose {
	case PurposeVerifyAccount:
		return AccountMutation{MarkVerified: true}, nil
	case PurposeResetPassword:
		if newPasswordHash == "" {
			return AccountMutation{}, fmt.Errorf("password reset requires a new credential: %w", ErrValidation)
		}
		return AccountMutation{MarkVerified: true, PasswordHash: &newPasswordHash}, nil
	default:
		return AccountMutation{}, fmt.Errorf("unknown token purpose %q: %w", purpose, ErrValidation)
	}
}

// Apply mutates u in place.
func (m AccountMutation) Apply(u *User) {
	if m.MarkVerified {
		u.IsAccountVerified = true
	}
	if m.PasswordHash != nil {
		u.PasswordHash = *m.PasswordHash
	}
}
