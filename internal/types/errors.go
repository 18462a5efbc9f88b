package types

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("requested item not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthenticated    = errors.New("authentication required or invalid credentials")
	ErrAccountNotVerified = errors.New("account not verified")
	ErrForbidden          = errors.New("action forbidden")
	ErrConflict           = errors.New("item already exists or conflict")
)
