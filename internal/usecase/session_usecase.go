package usecase

import (
	"context"

	"sessiongate/internal/domain/entity"
)

// SessionUsecase defines the device management operations available to an authenticated user.
type SessionUsecase interface {
	// ListSessions returns the caller's sessions, most recently active first.
	ListSessions(ctx context.Context, principal entity.Principal) ([]entity.SessionView, error)

	// RevokeSession kicks one of the caller's own devices.
	RevokeSession(ctx context.Context, principal entity.Principal, targetSessionID int64, client ClientInfo) error

	// RevokeOthers kicks every device of the caller except the current one.
	RevokeOthers(ctx context.Context, principal entity.Principal, client ClientInfo) (int64, error)

	// RevokeAll kicks every device of the caller, the current one included.
	RevokeAll(ctx context.Context, principal entity.Principal, client ClientInfo) (int64, error)

	// ListOnlineUsers returns the users flagged online in the user store.
	ListOnlineUsers(ctx context.Context) ([]entity.UserSummary, error)

	// ListAccessLogs returns the caller's login, logout and kick history, newest first.
	ListAccessLogs(ctx context.Context, principal entity.Principal, limit int) ([]*entity.AccessLog, error)
}
