package client

import (
	"time"

	"github.com/dmitrijs2005/offsync/internal/server/auth"
)

// TokenSource returns the bearer token for the next request.
type TokenSource func() (string, error)

// DefaultTokenTTL is how long a minted request token stays valid.
const DefaultTokenTTL = 5 * time.Minute

// NewSharedSecretTokenSource mints a fresh HS256 token per request for
// deviceID, signed with the secret shared with the endpoint.
func NewSharedSecretTokenSource(secret []byte, deviceID string, ttl time.Duration) TokenSource {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return func() (string, error) {
		return auth.GenerateToken(deviceID, secret, ttl)
	}
}
