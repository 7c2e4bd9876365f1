package middleware

import (
	"log/slog"

	"sessiongate/internal/delivery/api/cookie"
	"sessiongate/internal/delivery/api/response"
	deliverycontext "sessiongate/internal/delivery/context"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/errors"
	"sessiongate/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthMiddlewareParams holds dependencies for AuthMiddleware, injected by Fx.
type AuthMiddlewareParams struct {
	fx.In

	Gate    usecase.Gate
	Cookies *cookie.Manager
	Logger  *slog.Logger
}

// AuthMiddleware runs the authentication gate for HTTP requests.
type AuthMiddleware struct {
	gate    usecase.Gate
	cookies *cookie.Manager
	logger  *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(params AuthMiddlewareParams) *AuthMiddleware {
	return &AuthMiddleware{
		gate:    params.Gate,
		cookies: params.Cookies,
		logger:  params.Logger,
	}
}

// Authenticate attaches the principal when the presented token maps to a live
// session. Requests without a usable token pass through anonymously; only a
// revoked or malformed session binding is refused here, and its cookies are cleared.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		result := m.gate.Authenticate(req.Context(), cookie.AccessToken(req, false))

		switch result.Outcome {
		case usecase.GateAccepted:
			deliverycontext.SetPrincipal(c, result.Identity)
		case usecase.GateRejected:
			if result.ClearCredentials {
				m.cookies.Clear(c)
			}

			return rejection(c, result.Err)
		case usecase.GateUnverified:
			// An expired token must survive here so the client can still refresh it.
			deliverycontext.SetGateError(c, result.Err)
		case usecase.GateAnonymous:
		}

		return next(c)
	}
}

// RequireAuth refuses requests that Authenticate did not accept. It must be
// used AFTER Authenticate. The error code tells the client whether a refresh can help.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := deliverycontext.GetPrincipal(c); ok {
			return next(c)
		}

		gateErr := deliverycontext.GetGateError(c)
		if gateErr == nil {
			return response.AppError(c, domainerrors.ErrUnauthenticated)
		}

		switch {
		case errors.Is(gateErr, domainerrors.ErrExpiredToken):
			return response.AppError(c, domainerrors.ErrExpiredToken)
		case errors.Is(gateErr, domainerrors.ErrInvalidToken):
			return response.AppError(c, domainerrors.ErrInvalidToken)
		}

		// Storage trouble behind the gate is a server fault, not a credential problem.
		return errors.WithStack(gateErr)
	}
}

func rejection(c echo.Context, err error) error {
	if errors.Is(err, domainerrors.ErrSessionNotFound) {
		return response.AppError(c, domainerrors.ErrSessionNotFound)
	}

	return response.AppError(c, domainerrors.ErrInvalidToken)
}
