package repository

import (
	"context"

	"sessiongate/internal/domain/entity"
)

// AccessLogRepository stores login, logout and kick audit rows.
type AccessLogRepository interface {
	Create(ctx context.Context, log *entity.AccessLog) error

	// ListByUserID returns the newest entries first, at most limit rows.
	ListByUserID(ctx context.Context, userID string, limit int) ([]*entity.AccessLog, error)
}
