// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"time"

	"sessiongate/config"
	deliverycontext "sessiongate/internal/delivery/context"
	"sessiongate/internal/domain/entity"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/domain/repository"
	"sessiongate/internal/domain/service"
	"sessiongate/internal/errors"
	"sessiongate/internal/usecase"
	"sessiongate/internal/util"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager    repository.TransactionManager
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	hasher       service.PasswordHasher
	tokenService service.TokenService
	publisher    service.EventPublisher
	registry     service.ConnectionRegistry
	policy       sessionPolicy
	now          func() time.Time
	logger       *slog.Logger
}

type sessionPolicy struct {
	maxActiveSessions int
	refreshTTL        time.Duration
	shortRefreshTTL   time.Duration
}

// refreshTTLFor selects the refresh token lifetime for a login.
func (p sessionPolicy) refreshTTLFor(keepLogin bool) time.Duration {
	if keepLogin {
		return p.refreshTTL
	}

	return p.shortRefreshTTL
}

func newSessionPolicy(cfg *config.Config) sessionPolicy {
	return sessionPolicy{
		maxActiveSessions: cfg.Auth.MaxActiveSessions,
		refreshTTL:        cfg.Auth.RefreshTTL,
		shortRefreshTTL:   cfg.Auth.ShortRefreshTTL,
	}
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	UserRepo     repository.UserRepository
	SessionRepo  repository.SessionRepository
	Hasher       service.PasswordHasher
	TokenService service.TokenService
	Publisher    service.EventPublisher
	Registry     service.ConnectionRegistry
	Config       *config.Config
	Logger       *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return &authService{
		txManager:    params.TxManager,
		userRepo:     params.UserRepo,
		sessionRepo:  params.SessionRepo,
		hasher:       params.Hasher,
		tokenService: params.TokenService,
		publisher:    params.Publisher,
		registry:     params.Registry,
		policy:       newSessionPolicy(params.Config),
		now:          time.Now,
		logger:       params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// loginResult is what the login transaction hands back once it has committed.
type loginResult struct {
	session     *entity.Session
	created     bool
	priorOthers int64
	evictedIDs  []int64
}

// Login verifies credentials, creates or reuses the device session and mints the token pair.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	srv.log(ctx).Debug("Starting login", slog.String("user_id", input.UserID))

	user, err := srv.verifyCredentials(ctx, input.UserID, input.Password)
	if err != nil {
		srv.log(ctx).Warn("Login failed", slog.String("user_id", input.UserID), slog.Any("error", err))

		return nil, err
	}

	device := input.Device()
	refreshTTL := srv.policy.refreshTTLFor(device.KeepLogin)

	refreshToken, err := srv.tokenService.IssueRefreshToken(user.ID, refreshTTL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue refresh token")
	}

	var result loginResult
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var txErr error
		result, txErr = srv.persistLogin(ctx, repoFactory, user, device, util.HashToken(refreshToken))

		return txErr
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute login transaction", slog.String("user_id", user.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute login transaction")
	}

	// Everything below runs only after the commit.
	for _, evictedID := range result.evictedIDs {
		srv.registry.CloseOne(user.ID, evictedID, service.CloseReasonSessionGone)
	}

	accessToken, err := srv.tokenService.IssueAccessToken(user.ID, result.session.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	if result.created && result.priorOthers >= 1 {
		srv.publishLoginEvent(ctx, result.session)
	}

	srv.log(ctx).Info("User logged in",
		slog.String("user_id", user.ID),
		slog.Int64("session_id", result.session.ID),
		slog.Bool("reused", !result.created),
		slog.Int("evicted", len(result.evictedIDs)),
	)

	return &usecase.LoginOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Summary(),
		DeviceID:     result.session.DeviceID,
		SessionID:    result.session.ID,
		KeepLogin:    result.session.KeepLogin,
		RefreshTTL:   refreshTTL,
	}, nil
}

// verifyCredentials reports unknown users and wrong passwords identically.
// bcrypt is CPU-bound, so it runs before any row lock is taken.
func (srv *authService) verifyCredentials(ctx context.Context, userID, password string) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
		}

		return nil, errors.Wrap(err, "failed to load user")
	}

	if !srv.hasher.Check(password, user.PasswordHash) {
		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
	}

	return user, nil
}

func (srv *authService) persistLogin(
	ctx context.Context,
	repoFactory repository.RepositoryFactory,
	user *entity.User,
	device entity.DeviceContext,
	refreshTokenHash string,
) (loginResult, error) {
	userRepo := repoFactory.UserRepo()
	sessionRepo := repoFactory.SessionRepo()

	// Serializes the count, evict and insert sequence per user.
	if err := userRepo.AcquireSessionMutex(ctx, user.ID); err != nil {
		return loginResult{}, errors.Wrap(err, "failed to acquire session mutex")
	}

	now := srv.now()
	result := loginResult{}

	existing, err := srv.findDeviceSession(ctx, sessionRepo, user.ID, device.DeviceID)
	if err != nil {
		return loginResult{}, err
	}

	if existing != nil {
		existing.ApplyDevice(device)
		existing.RefreshTokenHash = refreshTokenHash
		existing.LastAccessedAt = now

		result.evictedIDs, err = srv.enforceSessionCap(ctx, sessionRepo, user.ID, existing.ID)
		if err != nil {
			return loginResult{}, err
		}
		if err := sessionRepo.UpdateDevice(ctx, existing); err != nil {
			return loginResult{}, errors.Wrap(err, "failed to refresh device session")
		}
		result.session = existing
	} else {
		result.priorOthers, err = sessionRepo.CountByUserID(ctx, user.ID, 0)
		if err != nil {
			return loginResult{}, errors.Wrap(err, "failed to count sessions")
		}

		result.evictedIDs, err = srv.enforceSessionCap(ctx, sessionRepo, user.ID, 0)
		if err != nil {
			return loginResult{}, err
		}

		deviceID := device.DeviceID
		if deviceID == "" {
			deviceID = uuid.NewString()
		}

		session := &entity.Session{
			UserID:           user.ID,
			DeviceID:         deviceID,
			RefreshTokenHash: refreshTokenHash,
			CreatedAt:        now,
			LastAccessedAt:   now,
		}
		session.ApplyDevice(device)

		if err := sessionRepo.Create(ctx, session); err != nil {
			return loginResult{}, errors.Wrap(err, "failed to create session")
		}
		if session.ID == 0 {
			return loginResult{}, errors.Wrap(domainerrors.ErrInternalError, "session id was not generated")
		}
		result.session = session
		result.created = true
	}

	if err := repoFactory.AccessLogRepo().Create(ctx, newAccessLog(
		entity.AccessLogLogin, user.ID, result.session.ID, device.IPAddress, device.UserAgent, result.session.Location, "",
	)); err != nil {
		return loginResult{}, errors.Wrap(err, "failed to write login access log")
	}

	if err := userRepo.SetOnline(ctx, user.ID, true); err != nil {
		return loginResult{}, errors.Wrap(err, "failed to mark user online")
	}

	return result, nil
}

func (srv *authService) findDeviceSession(
	ctx context.Context,
	sessionRepo repository.SessionRepository,
	userID, deviceID string,
) (*entity.Session, error) {
	if deviceID == "" {
		return nil, nil
	}

	existing, err := sessionRepo.FindByUserAndDevice(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "failed to find device session")
	}

	return existing, nil
}

// enforceSessionCap evicts the least recently used sessions until one more
// fits under the cap. keepID, when positive, is never evicted or counted.
func (srv *authService) enforceSessionCap(
	ctx context.Context,
	sessionRepo repository.SessionRepository,
	userID string,
	keepID int64,
) ([]int64, error) {
	if srv.policy.maxActiveSessions <= 0 {
		return nil, nil
	}

	count, err := sessionRepo.CountByUserID(ctx, userID, keepID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count sessions")
	}

	var evicted []int64
	for ; count >= int64(srv.policy.maxActiveSessions); count-- {
		oldest, err := sessionRepo.FindOldestByUserID(ctx, userID, keepID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to find oldest session")
		}
		if err := sessionRepo.DeleteByID(ctx, oldest.ID); err != nil {
			return nil, errors.Wrap(err, "failed to evict oldest session")
		}
		evicted = append(evicted, oldest.ID)

		srv.log(ctx).Info("Evicted oldest session",
			slog.String("user_id", userID),
			slog.Int64("session_id", oldest.ID),
		)
	}

	return evicted, nil
}

func (srv *authService) publishLoginEvent(ctx context.Context, session *entity.Session) {
	event := entity.LoginEvent{
		UserID:       session.UserID,
		NewSessionID: session.ID,
		DeviceType:   session.DeviceType,
		IPAddress:    session.IPAddress,
		OccurredAt:   session.CreatedAt,
	}

	if err := srv.publisher.PublishLoginEvent(ctx, event); err != nil {
		srv.log(ctx).Warn("Failed to publish login event",
			slog.String("user_id", session.UserID),
			slog.Int64("session_id", session.ID),
			slog.Any("error", err),
		)
	}
}

// Logout ends the session named by the presented tokens. It never fails for
// unknown or foreign sessions so that clients can always clear their state.
func (srv *authService) Logout(ctx context.Context, input *usecase.LogoutInput) error {
	userID, sessionID, ok := srv.identifySession(ctx, input)
	if !ok {
		srv.log(ctx).Debug("Logout without an identifiable session")

		return nil
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.SessionRepo()

		session, err := sessionRepo.FindByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return nil
			}

			return errors.Wrap(err, "failed to find session")
		}
		if session.UserID != userID {
			srv.log(ctx).Warn("Logout for a session owned by another user",
				slog.String("user_id", userID),
				slog.Int64("session_id", sessionID),
			)

			return nil
		}

		if err := sessionRepo.DeleteByID(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
			return errors.Wrap(err, "failed to delete session")
		}

		return repoFactory.AccessLogRepo().Create(ctx, newAccessLog(
			entity.AccessLogLogout, userID, sessionID, input.Client.IPAddress, input.Client.UserAgent, session.Location, "",
		))
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute logout transaction", slog.String("user_id", userID), slog.Any("error", err))

		return errors.Wrap(err, "failed to execute logout transaction")
	}

	srv.registry.CloseOne(userID, sessionID, service.CloseReasonLogout)
	srv.log(ctx).Info("User logged out", slog.String("user_id", userID), slog.Int64("session_id", sessionID))

	return nil
}

// identifySession prefers the access token claims, accepting expired tokens,
// and falls back to the stored refresh token hash.
func (srv *authService) identifySession(ctx context.Context, input *usecase.LogoutInput) (string, int64, bool) {
	if input.AccessToken != "" {
		claims, err := srv.tokenService.ExtractClaims(input.AccessToken, true)
		if err == nil && claims.HasSession() {
			return claims.UserID(), claims.SessionID, true
		}
		srv.log(ctx).Debug("Logout access token unusable", slog.Any("error", err))
	}

	if input.RefreshToken != "" {
		session, err := srv.sessionRepo.FindByRefreshTokenHash(ctx, util.HashToken(input.RefreshToken))
		if err == nil {
			return session.UserID, session.ID, true
		}
	}

	return "", 0, false
}

// LogoutAll ends every session of the user and disconnects all of their devices.
func (srv *authService) LogoutAll(ctx context.Context, principal entity.Principal, client usecase.ClientInfo) error {
	var deleted int64
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		deleted, err = repoFactory.SessionRepo().DeleteByUserID(ctx, principal.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to delete sessions")
		}

		if err := repoFactory.UserRepo().SetOnline(ctx, principal.UserID, false); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return errors.Wrap(err, "failed to mark user offline")
		}

		return repoFactory.AccessLogRepo().Create(ctx, newAccessLog(
			entity.AccessLogLogout, principal.UserID, principal.SessionID, client.IPAddress, client.UserAgent, "", entity.KickAllDevices,
		))
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute logout-all transaction", slog.String("user_id", principal.UserID), slog.Any("error", err))

		return errors.Wrap(err, "failed to execute logout-all transaction")
	}

	closed := srv.registry.CloseAll(principal.UserID, service.CloseReasonLogout)
	srv.log(ctx).Info("User logged out everywhere",
		slog.String("user_id", principal.UserID),
		slog.Int64("sessions", deleted),
		slog.Int("connections", closed),
	)

	return nil
}

// Refresh exchanges a live refresh token for a new token pair. The presented
// refresh token stops working once this returns.
func (srv *authService) Refresh(ctx context.Context, input *usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	claims, err := srv.tokenService.ParseRefreshToken(input.RefreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "invalid refresh token")
	}

	session, err := srv.sessionRepo.FindByRefreshTokenHash(ctx, util.HashToken(input.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			// A rotated-away token behaves as expired.
			return nil, errors.Wrap(domainerrors.ErrExpiredToken, "refresh token is no longer current")
		}

		return nil, errors.Wrap(err, "failed to find session by refresh token")
	}

	if input.AccessToken != "" {
		accessClaims, err := srv.tokenService.ExtractClaims(input.AccessToken, true)
		if err == nil && accessClaims.SessionID != session.ID {
			return nil, errors.Wrap(domainerrors.ErrSessionNotFound, "access token belongs to another session")
		}
	}

	if session.UserID != claims.UserID() {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "refresh token subject mismatch")
	}

	refreshTTL := srv.policy.refreshTTLFor(session.KeepLogin)
	newRefreshToken, err := srv.tokenService.IssueRefreshToken(session.UserID, refreshTTL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue refresh token")
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.SessionRepo()

		err := sessionRepo.UpdateRefreshToken(ctx, session.ID, session.RefreshTokenHash, util.HashToken(newRefreshToken))
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return errors.Wrap(domainerrors.ErrSessionNotFound, "session revoked during refresh")
			}
			if errors.Is(err, repository.ErrRefreshTokenRotated) {
				return errors.Wrap(domainerrors.ErrExpiredToken, "refresh token rotated by a concurrent request")
			}

			return errors.Wrap(err, "failed to rotate refresh token")
		}

		return sessionRepo.TouchLastAccessed(ctx, session.ID, srv.now())
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute refresh transaction")
	}

	accessToken, err := srv.tokenService.IssueAccessToken(session.UserID, session.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	srv.log(ctx).Debug("Tokens refreshed", slog.String("user_id", session.UserID), slog.Int64("session_id", session.ID))

	return &usecase.RefreshOutput{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		SessionID:    session.ID,
		KeepLogin:    session.KeepLogin,
		RefreshTTL:   refreshTTL,
	}, nil
}

// Check reports the identity behind an access token. Expired tokens still
// authenticate with zero seconds left, telling the client to refresh.
func (srv *authService) Check(ctx context.Context, accessToken string) (*usecase.CheckOutput, error) {
	unauthenticated := &usecase.CheckOutput{Authenticated: false}
	if accessToken == "" {
		return unauthenticated, nil
	}

	claims, err := srv.tokenService.ExtractClaims(accessToken, true)
	if err != nil || !claims.HasSession() {
		return unauthenticated, nil //nolint:nilerr // an unusable token is simply unauthenticated
	}

	session, err := srv.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return unauthenticated, nil
		}

		return nil, errors.Wrap(err, "failed to find session")
	}
	if session.UserID != claims.UserID() {
		return unauthenticated, nil
	}

	user, err := srv.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return unauthenticated, nil
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	summary := user.Summary()

	return &usecase.CheckOutput{
		Authenticated: true,
		User:          &summary,
		ExpiresIn:     int64(claims.RemainingTTL(srv.now()).Seconds()),
	}, nil
}
