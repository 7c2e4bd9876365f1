package entity

import "time"

// UnknownValue fills descriptive device fields the client did not provide.
const UnknownValue = "Unknown"

// Session binds one authenticated device to one user. Deleting it is the
// single act of revocation.
type Session struct {
	ID               int64     // Server generated, unique, embedded in access tokens.
	UserID           string    // Owning user.
	RefreshTokenHash string    // SHA-256 of the current refresh token; older values are invalid.
	DeviceID         string    // Stable client-side identifier used for session reuse.
	DeviceType       string    // Descriptive only.
	UserAgent        string    // Descriptive only.
	IPAddress        string    // Descriptive only.
	Location         string    // Descriptive only.
	KeepLogin        bool      // Selects the long refresh lifetime and persistent cookies.
	CreatedAt        time.Time // When the device first logged in.
	LastAccessedAt   time.Time // Touched on every authenticated request.
}

// DeviceContext describes the device presenting credentials at login.
type DeviceContext struct {
	DeviceID   string
	DeviceType string
	UserAgent  string
	IPAddress  string
	Location   string
	KeepLogin  bool
}

// SessionView is the listing projection of a Session. It never carries the refresh token.
type SessionView struct {
	ID         int64     `json:"id"`
	DeviceType string    `json:"deviceType"`
	UserAgent  string    `json:"userAgent"`
	IPAddress  string    `json:"ipAddress"`
	Location   string    `json:"location"`
	LastActive time.Time `json:"lastActive"`
	IsCurrent  bool      `json:"isCurrent"`
}

// View projects the session for listing, flagging it when it is the caller's own.
func (s *Session) View(currentSessionID int64) SessionView {
	return SessionView{
		ID:         s.ID,
		DeviceType: orUnknown(s.DeviceType),
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
		Location:   orUnknown(s.Location),
		LastActive: s.LastAccessedAt,
		IsCurrent:  s.ID == currentSessionID,
	}
}

// ApplyDevice overwrites the descriptive device metadata in place.
func (s *Session) ApplyDevice(device DeviceContext) {
	s.DeviceType = device.DeviceType
	s.UserAgent = device.UserAgent
	s.IPAddress = device.IPAddress
	s.Location = orUnknown(device.Location)
	s.KeepLogin = device.KeepLogin
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownValue
	}

	return v
}
