package service

// Close reasons sent with the administrative close code.
const (
	CloseReasonKicked      = "Force Logout by Admin"
	CloseReasonKickOthers  = "Force Logout Others"
	CloseReasonKickAll     = "Force Logout All"
	CloseReasonLogout      = "Logout"
	CloseReasonSessionGone = "Session Revoked"
)

// ConnectionRegistry is the in-memory map of live realtime connections.
// Close operations are best-effort and report how many connections were told to close.
type ConnectionRegistry interface {
	// CloseOne closes the user's connections tagged with sessionID.
	CloseOne(userID string, sessionID int64, reason string) int

	// CloseOthers closes every connection of the user except those tagged keepSessionID.
	CloseOthers(userID string, keepSessionID int64, reason string) int

	// CloseAll closes every connection of the user.
	CloseAll(userID string, reason string) int

	// SendToUser writes msg to the user's connections, skipping those tagged
	// exceptSessionID when it is positive.
	SendToUser(userID string, msg any, exceptSessionID int64) int

	// Broadcast writes msg to every live connection.
	Broadcast(msg any) int

	// OnlineUserCount is the number of users with at least one live connection.
	OnlineUserCount() int

	// IsOnline reports whether the user has a live connection.
	IsOnline(userID string) bool
}
