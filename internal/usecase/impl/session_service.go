package impl

import (
	"context"
	"fmt"
	"log/slog"

	deliverycontext "sessiongate/internal/delivery/context"
	"sessiongate/internal/domain/entity"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/domain/repository"
	"sessiongate/internal/domain/service"
	"sessiongate/internal/errors"
	"sessiongate/internal/usecase"

	"go.uber.org/fx"
)

// SessionServiceParams holds dependencies for SessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	TxManager     repository.TransactionManager
	UserRepo      repository.UserRepository
	SessionRepo   repository.SessionRepository
	AccessLogRepo repository.AccessLogRepository
	Registry      service.ConnectionRegistry
	Logger        *slog.Logger
}

type sessionService struct {
	txManager     repository.TransactionManager
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	accessLogRepo repository.AccessLogRepository
	registry      service.ConnectionRegistry
	logger        *slog.Logger
}

// NewSessionService creates a new session service
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		txManager:     params.TxManager,
		userRepo:      params.UserRepo,
		sessionRepo:   params.SessionRepo,
		accessLogRepo: params.AccessLogRepo,
		registry:      params.Registry,
		logger:        params.Logger,
	}
}

func (s *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

// ListSessions returns the caller's sessions, most recently used first.
func (s *sessionService) ListSessions(ctx context.Context, principal entity.Principal) ([]entity.SessionView, error) {
	sessions, err := s.sessionRepo.ListByUserID(ctx, principal.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	views := make([]entity.SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, session.View(principal.SessionID))
	}

	return views, nil
}

// RevokeSession deletes one of the caller's sessions and closes its connections.
func (s *sessionService) RevokeSession(ctx context.Context, principal entity.Principal, targetID int64, client usecase.ClientInfo) error {
	err := s.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.SessionRepo()

		target, err := sessionRepo.FindByID(ctx, targetID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return errors.Wrap(domainerrors.ErrNotFound, "session not found")
			}

			return errors.Wrap(err, "failed to find session")
		}

		if target.UserID != principal.UserID {
			return errors.Wrap(domainerrors.ErrForbidden, "session belongs to another user")
		}

		if err := sessionRepo.DeleteByID(ctx, targetID); err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return errors.Wrap(domainerrors.ErrNotFound, "session not found")
			}

			return errors.Wrap(err, "failed to delete session")
		}

		return repoFactory.AccessLogRepo().Create(ctx, newAccessLog(
			entity.AccessLogKick, principal.UserID, principal.SessionID,
			client.IPAddress, client.UserAgent, "", fmt.Sprintf("SESSION:%d", targetID),
		))
	})
	if err != nil {
		return errors.Wrap(err, "failed to revoke session")
	}

	closed := s.registry.CloseOne(principal.UserID, targetID, service.CloseReasonKicked)
	s.log(ctx).Info("Session revoked",
		slog.String("user_id", principal.UserID),
		slog.Int64("session_id", targetID),
		slog.Int("connections", closed),
	)

	return nil
}

// RevokeOthers deletes every session of the caller except the current one.
func (s *sessionService) RevokeOthers(ctx context.Context, principal entity.Principal, client usecase.ClientInfo) (int64, error) {
	var deleted int64
	err := s.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		deleted, err = repoFactory.SessionRepo().DeleteOthers(ctx, principal.UserID, principal.SessionID)
		if err != nil {
			return errors.Wrap(err, "failed to delete other sessions")
		}

		return repoFactory.AccessLogRepo().Create(ctx, newAccessLog(
			entity.AccessLogKick, principal.UserID, principal.SessionID,
			client.IPAddress, client.UserAgent, "", entity.KickAllOthers,
		))
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to revoke other sessions")
	}

	closed := s.registry.CloseOthers(principal.UserID, principal.SessionID, service.CloseReasonKickOthers)
	s.log(ctx).Info("Other sessions revoked",
		slog.String("user_id", principal.UserID),
		slog.Int64("sessions", deleted),
		slog.Int("connections", closed),
	)

	return deleted, nil
}

// RevokeAll deletes every session of the caller, the current one included.
func (s *sessionService) RevokeAll(ctx context.Context, principal entity.Principal, client usecase.ClientInfo) (int64, error) {
	var deleted int64
	err := s.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		deleted, err = repoFactory.SessionRepo().DeleteByUserID(ctx, principal.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to delete sessions")
		}

		return repoFactory.AccessLogRepo().Create(ctx, newAccessLog(
			entity.AccessLogKick, principal.UserID, principal.SessionID,
			client.IPAddress, client.UserAgent, "", entity.KickAllDevices,
		))
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to revoke all sessions")
	}

	closed := s.registry.CloseAll(principal.UserID, service.CloseReasonKickAll)
	s.log(ctx).Info("All sessions revoked",
		slog.String("user_id", principal.UserID),
		slog.Int64("sessions", deleted),
		slog.Int("connections", closed),
	)

	return deleted, nil
}

// ListOnlineUsers returns the users currently flagged online.
func (s *sessionService) ListOnlineUsers(ctx context.Context) ([]entity.UserSummary, error) {
	users, err := s.userRepo.ListOnline(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list online users")
	}

	summaries := make([]entity.UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, user.Summary())
	}

	return summaries, nil
}

const (
	defaultAccessLogLimit = 50
	maxAccessLogLimit     = 200
)

// ListAccessLogs returns the caller's audit history. A non-positive limit
// selects the default; larger requests are capped.
func (s *sessionService) ListAccessLogs(ctx context.Context, principal entity.Principal, limit int) ([]*entity.AccessLog, error) {
	switch {
	case limit <= 0:
		limit = defaultAccessLogLimit
	case limit > maxAccessLogLimit:
		limit = maxAccessLogLimit
	}

	logs, err := s.accessLogRepo.ListByUserID(ctx, principal.UserID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list access logs")
	}

	return logs, nil
}
