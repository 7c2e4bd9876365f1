package entity

import "time"

// Principal is the identity the authentication gate attaches to a request or
// connection once its session row has been confirmed.
type Principal struct {
	UserID    string
	SessionID int64
	ExpiresAt time.Time // Access token expiry.
}
