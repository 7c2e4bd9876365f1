package entity

import "time"

// LoginEvent announces a brand-new session for a user who already had others.
// It is produced only after the creating transaction has committed.
type LoginEvent struct {
	UserID       string
	NewSessionID int64
	DeviceType   string
	IPAddress    string
	OccurredAt   time.Time
}

// PresenceChange announces that a user went online (first connection) or
// offline (last connection closed).
type PresenceChange struct {
	UserID          string
	Online          bool
	OnlineUserCount int
}
