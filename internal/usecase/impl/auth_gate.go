package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "sessiongate/internal/delivery/context"
	"sessiongate/internal/domain/entity"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/domain/repository"
	"sessiongate/internal/domain/service"
	"sessiongate/internal/errors"
	"sessiongate/internal/usecase"

	"go.uber.org/fx"
)

// AuthGateParams holds dependencies for the authentication gate, injected by Fx.
type AuthGateParams struct {
	fx.In

	SessionRepo  repository.SessionRepository
	TokenService service.TokenService
	Logger       *slog.Logger
}

type authGate struct {
	sessionRepo  repository.SessionRepository
	tokenService service.TokenService
	now          func() time.Time
	logger       *slog.Logger
}

// NewAuthGate builds the gate shared by the HTTP middleware and the websocket handshake.
func NewAuthGate(params AuthGateParams) usecase.Gate {
	return &authGate{
		sessionRepo:  params.SessionRepo,
		tokenService: params.TokenService,
		now:          time.Now,
		logger:       params.Logger,
	}
}

func (g *authGate) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, g.logger)
}

// Authenticate resolves an access token to a principal. A token is only as
// good as the session row it names.
func (g *authGate) Authenticate(ctx context.Context, accessToken string) usecase.GateResult {
	if accessToken == "" {
		return usecase.GateResult{Outcome: usecase.GateAnonymous}
	}

	claims, err := g.tokenService.ExtractClaims(accessToken, false)
	if err != nil {
		return usecase.GateResult{Outcome: usecase.GateUnverified, Err: err}
	}

	if !claims.HasSession() {
		return g.reject(ctx, claims, errors.Wrap(domainerrors.ErrInvalidToken, "token carries no session"))
	}

	session, err := g.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return g.reject(ctx, claims, errors.Wrap(domainerrors.ErrSessionNotFound, "session revoked"))
		}

		// Storage trouble says nothing about the token, so credentials are kept.
		return usecase.GateResult{Outcome: usecase.GateUnverified, Err: errors.Wrap(err, "failed to load session")}
	}

	if session.UserID != claims.UserID() {
		return g.reject(ctx, claims, errors.Wrap(domainerrors.ErrInvalidToken, "session owner mismatch"))
	}

	if err := g.sessionRepo.TouchLastAccessed(ctx, session.ID, g.now()); err != nil {
		g.log(ctx).Warn("Failed to touch session", slog.Int64("session_id", session.ID), slog.Any("error", err))
	}

	principal := &entity.Principal{UserID: session.UserID, SessionID: session.ID}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}

	return usecase.GateResult{Outcome: usecase.GateAccepted, Identity: principal}
}

func (g *authGate) Confirm(ctx context.Context, principal *entity.Principal) error {
	session, err := g.sessionRepo.FindByID(ctx, principal.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return errors.Wrap(domainerrors.ErrSessionNotFound, "session revoked")
		}

		return errors.Wrap(err, "failed to load session")
	}

	if session.UserID != principal.UserID {
		return errors.Wrap(domainerrors.ErrInvalidToken, "session owner mismatch")
	}

	return nil
}

func (g *authGate) reject(ctx context.Context, claims *service.Claims, err error) usecase.GateResult {
	g.log(ctx).Debug("Rejected access token",
		slog.String("user_id", claims.UserID()),
		slog.Int64("session_id", claims.SessionID),
		slog.Any("error", err),
	)

	return usecase.GateResult{Outcome: usecase.GateRejected, Err: err, ClearCredentials: true}
}
