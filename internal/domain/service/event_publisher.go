package service

import (
	"context"

	"sessiongate/internal/domain/entity"

	"github.com/pkg/errors"
)

var (
	// ErrEventDropped is returned when an at-most-once event could not be buffered.
	ErrEventDropped = errors.New("event dropped: buffer full")
	// ErrPublisherClosed is returned after Close.
	ErrPublisherClosed = errors.New("event publisher closed")
)

// EventPublisher hands domain events to in-process subscribers.
type EventPublisher interface {
	// PublishLoginEvent delivers at most once and never blocks.
	PublishLoginEvent(ctx context.Context, event entity.LoginEvent) error

	// PublishPresenceChange blocks until the change is accepted, the context ends or the publisher closes.
	PublishPresenceChange(ctx context.Context, change entity.PresenceChange) error

	// Close stops accepting events and releases subscribers.
	Close() error
}

// EventSubscriber exposes the receiving side of the event channels.
type EventSubscriber interface {
	LoginEvents() <-chan entity.LoginEvent
	PresenceChanges() <-chan entity.PresenceChange
	// Done is closed when the publisher closes.
	Done() <-chan struct{}
}
