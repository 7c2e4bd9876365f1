package usecase

import "context"

// PresenceNotifier pushes presence and new-device notices to live connections.
type PresenceNotifier interface {
	// Run consumes events until ctx ends or the event source closes.
	Run(ctx context.Context) error
}

// SessionJanitor removes sessions that have been idle past the retention window.
type SessionJanitor interface {
	// Sweep deletes sessions idle for more than retentionDays and reports how many went away.
	Sweep(ctx context.Context, retentionDays int) (int64, error)
}
