// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"sessiongate/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the user-store operations the session subsystem consumes.
type UserRepository interface {
	// FindByID retrieves a single user by login identifier.
	FindByID(ctx context.Context, id string) (*entity.User, error)

	// AcquireSessionMutex locks the user's row until the surrounding transaction ends.
	// Session cap enforcement for one user is serialized through this lock.
	AcquireSessionMutex(ctx context.Context, id string) error

	// SetOnline records whether the user currently has a live realtime connection.
	SetOnline(ctx context.Context, id string, online bool) error

	// ListOnline returns every user flagged online, ordered by ID.
	ListOnline(ctx context.Context) ([]*entity.User, error)

	// Create persists a new user. Registration itself is not exposed over HTTP.
	Create(ctx context.Context, user *entity.User) error
}
