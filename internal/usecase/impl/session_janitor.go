package impl

import (
	"context"
	"log/slog"
	"time"

	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/domain/repository"
	"sessiongate/internal/errors"
	"sessiongate/internal/usecase"

	"go.uber.org/fx"
)

// SessionJanitorParams holds dependencies for the session janitor, injected by Fx.
type SessionJanitorParams struct {
	fx.In

	SessionRepo repository.SessionRepository
	Logger      *slog.Logger
}

type sessionJanitor struct {
	sessionRepo repository.SessionRepository
	now         func() time.Time
	logger      *slog.Logger
}

// NewSessionJanitor builds the inactive session sweeper.
func NewSessionJanitor(params SessionJanitorParams) usecase.SessionJanitor {
	return &sessionJanitor{
		sessionRepo: params.SessionRepo,
		now:         time.Now,
		logger:      params.Logger,
	}
}

// Sweep deletes sessions idle for longer than retentionDays.
func (j *sessionJanitor) Sweep(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.Wrap(domainerrors.ErrInvalidInput, "retention days must be positive")
	}

	cutoff := j.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	deleted, err := j.sessionRepo.DeleteInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete inactive sessions")
	}

	j.logger.Info("Swept inactive sessions",
		slog.Time("cutoff", cutoff),
		slog.Int64("deleted", deleted),
	)

	return deleted, nil
}
