package message

import (
	"encoding/json"
	"time"
)

// UserUpdate carries the number of users currently online.
type UserUpdate struct {
	Type            Kind `json:"type"`
	OnlineUserCount int  `json:"onlineUserCount"`
}

// NewUserUpdate builds a USER_UPDATE payload.
func NewUserUpdate(count int) UserUpdate {
	return UserUpdate{Type: KindUserUpdate, OnlineUserCount: count}
}

// NewDeviceLogin tells a user's other devices that a new device signed in.
type NewDeviceLogin struct {
	Type       Kind   `json:"type"`
	DeviceType string `json:"deviceType"`
	IPAddress  string `json:"ipAddress"`
	Timestamp  int64  `json:"timestamp"`
	Message    string `json:"message"`
}

// NewNewDeviceLogin builds a NEW_DEVICE_LOGIN payload.
func NewNewDeviceLogin(deviceType, ipAddress string, at time.Time) NewDeviceLogin {
	return NewDeviceLogin{
		Type:       KindNewDeviceLogin,
		DeviceType: deviceType,
		IPAddress:  ipAddress,
		Timestamp:  at.UnixMilli(),
		Message:    "A new device signed in to your account",
	}
}

// ForceLogout precedes an administrative close.
type ForceLogout struct {
	Type   Kind   `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// NewForceLogout builds a FORCE_LOGOUT payload.
func NewForceLogout(reason string) ForceLogout {
	return ForceLogout{Type: KindForceLogout, Reason: reason}
}

// Chat is a relayed chat line.
type Chat struct {
	Type      Kind      `json:"type"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// MemoUpdate tells clients to reload memos.
type MemoUpdate struct {
	Type   Kind   `json:"type"`
	UserID string `json:"userId,omitempty"`
}

// Inbound is any frame received from a client. Only the fields of the
// recognised kinds are read.
type Inbound struct {
	Type Kind   `json:"type"`
	Text string `json:"text,omitempty"`
}

// DecodeInbound parses a client frame. Malformed JSON is an error; an
// unrecognised type is not.
func DecodeInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, err
	}

	return in, nil
}
