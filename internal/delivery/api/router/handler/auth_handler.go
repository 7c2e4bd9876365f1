// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"

	"sessiongate/internal/delivery/api/cookie"
	"sessiongate/internal/delivery/api/response"
	deliverycontext "sessiongate/internal/delivery/context"
	"sessiongate/internal/domain/entity"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/errors"
	"sessiongate/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC  usecase.AuthUsecase
	Cookies *cookie.Manager
	Logger  *slog.Logger
}

// AuthHandler serves login, refresh, logout and the auth check.
type AuthHandler struct {
	authUC  usecase.AuthUsecase
	cookies *cookie.Manager
	logger  *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler.
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC:  params.AuthUC,
		cookies: params.Cookies,
		logger:  params.Logger,
	}
}

// TokenResponse is returned by login and refresh. The same tokens are also set as cookies.
type TokenResponse struct {
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
	SessionID    int64               `json:"sessionId"`
	DeviceID     string              `json:"deviceId,omitempty"`
	User         *entity.UserSummary `json:"user,omitempty"`
}

// RefreshRequest lets non-browser clients send the refresh token in the body.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login handles the credential exchange.
func (h *AuthHandler) Login(c echo.Context) error {
	var input usecase.LoginInput
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}

	if err := c.Validate(&input); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}
	input.Client = clientInfo(c)

	output, err := h.authUC.Login(c.Request().Context(), &input)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	h.cookies.SetTokens(c, output.AccessToken, output.RefreshToken, output.KeepLogin, output.RefreshTTL)

	return response.Success(c, http.StatusOK, TokenResponse{
		AccessToken:  output.AccessToken,
		RefreshToken: output.RefreshToken,
		SessionID:    output.SessionID,
		DeviceID:     output.DeviceID,
		User:         &output.User,
	})
}

// Refresh rotates the refresh token and mints a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	req := c.Request()

	refreshToken := cookie.RefreshToken(req)
	if refreshToken == "" {
		var body RefreshRequest
		if err := c.Bind(&body); err == nil {
			refreshToken = body.RefreshToken
		}
	}
	if refreshToken == "" {
		return response.AppError(c, domainerrors.ErrInvalidToken)
	}

	output, err := h.authUC.Refresh(req.Context(), &usecase.RefreshInput{
		RefreshToken: refreshToken,
		AccessToken:  cookie.AccessToken(req, false),
	})
	if err != nil {
		// A rotated-away refresh token usually means another tab already refreshed
		// and holds the new cookies, so only definitive failures clear them.
		if errors.IsAny(err, domainerrors.ErrSessionNotFound, domainerrors.ErrInvalidToken) {
			h.cookies.Clear(c)
		}

		return response.HandleAppError(c, err)
	}

	h.cookies.SetTokens(c, output.AccessToken, output.RefreshToken, output.KeepLogin, output.RefreshTTL)

	return response.Success(c, http.StatusOK, TokenResponse{
		AccessToken:  output.AccessToken,
		RefreshToken: output.RefreshToken,
		SessionID:    output.SessionID,
	})
}

// Logout ends the current device's session. It accepts expired access tokens
// and always clears the cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	req := c.Request()

	err := h.authUC.Logout(req.Context(), &usecase.LogoutInput{
		AccessToken:  cookie.AccessToken(req, false),
		RefreshToken: cookie.RefreshToken(req),
		Client:       clientInfo(c),
	})
	h.cookies.Clear(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Message(c, "Logged out")
}

// LogoutAll ends every session of the caller.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return response.AppError(c, domainerrors.ErrUnauthenticated)
	}

	if err := h.authUC.LogoutAll(c.Request().Context(), *principal, clientInfo(c)); err != nil {
		return response.HandleAppError(c, err)
	}
	h.cookies.Clear(c)

	return response.Message(c, "Logged out from all devices")
}

// Check reports whether the presented access token belongs to a live session.
func (h *AuthHandler) Check(c echo.Context) error {
	req := c.Request()

	output, err := h.authUC.Check(req.Context(), cookie.AccessToken(req, false))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, output)
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}

func clientInfo(c echo.Context) usecase.ClientInfo {
	return usecase.ClientInfo{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
