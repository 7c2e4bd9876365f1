package repository

import (
	"context"
	"time"

	"sessiongate/internal/domain/entity"

	"github.com/pkg/errors"
)

var (
	// ErrSessionNotFound is returned when no session row matches.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenRotated is returned when the session exists but no longer
	// holds the expected refresh token hash.
	ErrRefreshTokenRotated = errors.New("refresh token already rotated")
)

// SessionRepository is the durable session store. A row's existence is the
// authority on whether a device is still allowed in.
type SessionRepository interface {
	// Create inserts the session and fills in the generated ID and timestamps.
	Create(ctx context.Context, session *entity.Session) error

	// FindByID returns ErrSessionNotFound when the row does not exist.
	FindByID(ctx context.Context, id int64) (*entity.Session, error)

	// FindByUserAndDevice returns ErrSessionNotFound when the device has no session for the user.
	FindByUserAndDevice(ctx context.Context, userID, deviceID string) (*entity.Session, error)

	// FindByRefreshTokenHash looks a session up by the hash of its current refresh token.
	FindByRefreshTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error)

	// ListByUserID returns the user's sessions, most recently accessed first.
	ListByUserID(ctx context.Context, userID string) ([]*entity.Session, error)

	// CountByUserID counts the user's sessions, ignoring excludeID when it is positive.
	CountByUserID(ctx context.Context, userID string, excludeID int64) (int64, error)

	// FindOldestByUserID returns the least recently accessed session, ignoring excludeID.
	// Equal timestamps resolve to the earliest inserted row.
	FindOldestByUserID(ctx context.Context, userID string, excludeID int64) (*entity.Session, error)

	// UpdateDevice rewrites device metadata, refresh token hash and last access of an existing row.
	UpdateDevice(ctx context.Context, session *entity.Session) error

	// UpdateRefreshToken swaps oldHash for newHash only while the row still holds oldHash.
	// It returns ErrRefreshTokenRotated when another rotation won and ErrSessionNotFound
	// when the row is gone.
	UpdateRefreshToken(ctx context.Context, id int64, oldHash, newHash string) error

	// TouchLastAccessed records activity on the session.
	TouchLastAccessed(ctx context.Context, id int64, at time.Time) error

	// DeleteByID returns ErrSessionNotFound when nothing was deleted.
	DeleteByID(ctx context.Context, id int64) error

	// DeleteByUserID removes every session of the user and reports how many rows went away.
	DeleteByUserID(ctx context.Context, userID string) (int64, error)

	// DeleteOthers removes every session of the user except keepID.
	DeleteOthers(ctx context.Context, userID string, keepID int64) (int64, error)

	// DeleteInactiveSince removes sessions last accessed before cutoff.
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}
