package password

import "strings"

// ResetLinkRequest asks for a reset link to be mailed to Email.
type ResetLinkRequest struct {
	Email string `json:"email" validate:"required,min=5,max=100,email"`
}

// ResetPasswordRequest carries the replacement credential.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (r *ResetLinkRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *ResetPasswordRequest) normalize() {
	r.Password = strings.TrimSpace(r.Password)
}
