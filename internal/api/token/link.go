package token

import (
	"strings"

	"github.com/FACorreiaa/go-blog-api/internal/types"
)

// BuildLink returns the client URL a user follows to redeem a token:
// {origin}/{purpose-path}/{userID}/{token}.
func BuildLink(origin string, purpose types.TokenPurpose, userID, token string) string {
	return strings.TrimRight(origin, "/") + "/" + purpose.PathSegment() + "/" + userID + "/" + token
}
