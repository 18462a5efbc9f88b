package types

import "github.com/golang-jwt/jwt/v5"

// Claims represents the custom claims included in the JWT session token.
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"usr,omitempty"`
	IsAdmin  bool   `json:"adm"`
	jwt.RegisteredClaims
}

// Response is the generic success/message envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
