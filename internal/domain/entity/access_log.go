package entity

import "time"

// AccessLogType classifies an audit row.
type AccessLogType string

const (
	AccessLogLogin  AccessLogType = "LOGIN"
	AccessLogLogout AccessLogType = "LOGOUT"
	AccessLogKick   AccessLogType = "KICK"
)

// Endpoint details recorded with kick rows.
const (
	KickAllOthers  = "ALL_OTHERS"
	KickAllDevices = "ALL_DEVICES"
)

// AccessLog is an audit record of a login, logout or kick.
type AccessLog struct {
	ID        int64         `json:"id"`
	UserID    string        `json:"userId"`
	SessionID int64         `json:"sessionId"`
	Type      AccessLogType `json:"type"`
	IPAddress string        `json:"ipAddress"`
	UserAgent string        `json:"userAgent"`
	Browser   string        `json:"browser"`
	OS        string        `json:"os"`
	Location  string        `json:"location"`
	Endpoint  string        `json:"endpoint,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}
