// Package message defines the realtime message kinds exchanged over websocket
// connections and their payloads.
package message

import "strings"

// Kind is the closed set of realtime message kinds. Anything unrecognised
// decodes to KindUnknown.
type Kind int

const (
	KindUnknown Kind = iota
	KindUserUpdate
	KindNewDeviceLogin
	KindForceLogout
	KindChat
	KindMemoUpdate
	KindSystemStatus
)

var kindNames = map[Kind]string{
	KindUnknown:        "UNKNOWN",
	KindUserUpdate:     "USER_UPDATE",
	KindNewDeviceLogin: "NEW_DEVICE_LOGIN",
	KindForceLogout:    "FORCE_LOGOUT",
	KindChat:           "CHAT",
	KindMemoUpdate:     "MEMO_UPDATE",
	KindSystemStatus:   "SYSTEM_STATUS",
}

// ParseKind maps a wire name to its Kind, case-insensitively.
func ParseKind(s string) Kind {
	needle := strings.ToUpper(strings.TrimSpace(s))
	for kind, name := range kindNames {
		if kind != KindUnknown && name == needle {
			return kind
		}
	}

	return KindUnknown
}

// String returns the wire name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return kindNames[KindUnknown]
}

// MarshalText encodes the kind as its wire name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText never fails: unknown names become KindUnknown.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))

	return nil
}
