package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the single typed claim set shared by access and refresh tokens.
// Subject carries the user ID.
type Claims struct {
	SessionID int64  `json:"sid,omitempty"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// HasSession reports whether a session claim is present.
func (c *Claims) HasSession() bool {
	return c.SessionID > 0
}

// RemainingTTL returns how long the token stays valid, never negative.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// TokenService issues and validates signed tokens.
type TokenService interface {
	// IssueAccessToken mints a short-lived token bound to sessionID.
	IssueAccessToken(userID string, sessionID int64) (string, error)

	// IssueRefreshToken mints a long-lived token. A non-positive ttl selects the configured default.
	IssueRefreshToken(userID string, ttl time.Duration) (string, error)

	// Validate reports whether an access token has a good signature and has not expired.
	Validate(tokenString string) bool

	// ExtractClaims parses an access token. With allowExpired the claims of a
	// well-signed but expired token are still returned.
	ExtractClaims(tokenString string, allowExpired bool) (*Claims, error)

	// ParseRefreshToken validates a refresh token and returns its claims.
	ParseRefreshToken(tokenString string) (*Claims, error)
}
