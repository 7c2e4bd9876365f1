package impl

import (
	"context"
	"log/slog"
	"time"

	"sessiongate/config"
	"sessiongate/internal/domain/entity"
	"sessiongate/internal/domain/message"
	"sessiongate/internal/domain/repository"
	"sessiongate/internal/domain/service"
	"sessiongate/internal/errors"
	"sessiongate/internal/usecase"

	"go.uber.org/fx"
)

// PresenceNotifierParams holds dependencies for the presence notifier, injected by Fx.
type PresenceNotifierParams struct {
	fx.In

	Subscriber service.EventSubscriber
	Registry   service.ConnectionRegistry
	UserRepo   repository.UserRepository
	Config     *config.Config
	Logger     *slog.Logger
}

type presenceNotifier struct {
	subscriber service.EventSubscriber
	registry   service.ConnectionRegistry
	userRepo   repository.UserRepository
	interval   time.Duration
	logger     *slog.Logger
}

// NewPresenceNotifier builds the consumer of login and presence events.
func NewPresenceNotifier(params PresenceNotifierParams) usecase.PresenceNotifier {
	return &presenceNotifier{
		subscriber: params.Subscriber,
		registry:   params.Registry,
		userRepo:   params.UserRepo,
		interval:   params.Config.Presence.BroadcastInterval,
		logger:     params.Logger,
	}
}

// Run consumes events until ctx ends or the publisher closes.
func (n *presenceNotifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.logger.Info("Presence notifier started", slog.Duration("broadcast_interval", n.interval))
	defer n.logger.Info("Presence notifier stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-n.subscriber.Done():
			return nil
		case change := <-n.subscriber.PresenceChanges():
			n.handlePresenceChange(ctx, change)
		case event := <-n.subscriber.LoginEvents():
			n.handleLoginEvent(event)
		case <-ticker.C:
			n.broadcastOnlineCount()
		}
	}
}

// handlePresenceChange stores the registry's current view rather than the
// event's, so changes handled out of order still converge.
func (n *presenceNotifier) handlePresenceChange(ctx context.Context, change entity.PresenceChange) {
	online := n.registry.IsOnline(change.UserID)

	if err := n.userRepo.SetOnline(ctx, change.UserID, online); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, repository.ErrUserNotFound) {
			level = slog.LevelDebug
		}
		n.logger.Log(ctx, level, "Failed to persist presence",
			slog.String("user_id", change.UserID),
			slog.Bool("online", online),
			slog.Any("error", err),
		)
	}

	n.broadcastOnlineCount()
}

func (n *presenceNotifier) handleLoginEvent(event entity.LoginEvent) {
	sent := n.registry.SendToUser(
		event.UserID,
		message.NewNewDeviceLogin(event.DeviceType, event.IPAddress, event.OccurredAt),
		event.NewSessionID,
	)

	n.logger.Debug("Notified other devices of new login",
		slog.String("user_id", event.UserID),
		slog.Int64("session_id", event.NewSessionID),
		slog.Int("connections", sent),
	)
}

func (n *presenceNotifier) broadcastOnlineCount() {
	n.registry.Broadcast(message.NewUserUpdate(n.registry.OnlineUserCount()))
}
