// Package events is the in-process event bus between the session use cases
// and the realtime notifier.
package events

import (
	"context"
	"log/slog"
	"sync"

	"sessiongate/internal/domain/entity"
	"sessiongate/internal/domain/service"
)

// Bus implements both sides of the event channels. Data channels are never
// closed; closing done releases publishers and subscribers alike.
type Bus struct {
	logger *slog.Logger

	login    chan entity.LoginEvent
	presence chan entity.PresenceChange
	done     chan struct{}

	closeOnce sync.Once
}

var (
	_ service.EventPublisher  = (*Bus)(nil)
	_ service.EventSubscriber = (*Bus)(nil)
)

// NewBus creates a bus whose channels buffer bufferSize events each.
func NewBus(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize < 0 {
		bufferSize = 0
	}

	return &Bus{
		logger:   logger,
		login:    make(chan entity.LoginEvent, bufferSize),
		presence: make(chan entity.PresenceChange, bufferSize),
		done:     make(chan struct{}),
	}
}

// PublishLoginEvent never blocks. A full buffer drops the event.
func (b *Bus) PublishLoginEvent(ctx context.Context, event entity.LoginEvent) error {
	if b.closed() {
		return service.ErrPublisherClosed
	}

	select {
	case b.login <- event:
		return nil
	default:
		b.logger.WarnContext(ctx, "Login event dropped",
			slog.String("user_id", event.UserID),
			slog.Int64("session_id", event.NewSessionID),
		)

		return service.ErrEventDropped
	}
}

// PublishPresenceChange waits for buffer space so that online flags are never lost.
func (b *Bus) PublishPresenceChange(ctx context.Context, change entity.PresenceChange) error {
	if b.closed() {
		return service.ErrPublisherClosed
	}

	select {
	case b.presence <- change:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return service.ErrPublisherClosed
	}
}

// Close stops accepting events. It is safe to call more than once.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
	})

	return nil
}

func (b *Bus) LoginEvents() <-chan entity.LoginEvent {
	return b.login
}

func (b *Bus) PresenceChanges() <-chan entity.PresenceChange {
	return b.presence
}

func (b *Bus) Done() <-chan struct{} {
	return b.done
}

func (b *Bus) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
