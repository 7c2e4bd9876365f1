package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"sessiongate/internal/delivery/api/response"
	deliverycontext "sessiongate/internal/delivery/context"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// SessionHandlerParams holds dependencies for SessionHandler, injected by Fx.
type SessionHandlerParams struct {
	fx.In

	SessionUC usecase.SessionUsecase
	Logger    *slog.Logger
}

// SessionHandler holds dependencies for device management handlers
type SessionHandler struct {
	sessionUC usecase.SessionUsecase
	logger    *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler
func NewSessionHandler(params SessionHandlerParams) *SessionHandler {
	return &SessionHandler{
		sessionUC: params.SessionUC,
		logger:    params.Logger,
	}
}

// RevokedResponse reports how many sessions a bulk revoke removed.
type RevokedResponse struct {
	Revoked int64 `json:"revoked"`
}

// ListSessions returns the caller's devices.
func (h *SessionHandler) ListSessions(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return response.AppError(c, domainerrors.ErrUnauthenticated)
	}

	sessions, err := h.sessionUC.ListSessions(c.Request().Context(), *principal)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, sessions)
}

// RevokeSession kicks one device.
func (h *SessionHandler) RevokeSession(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return response.AppError(c, domainerrors.ErrUnauthenticated)
	}

	targetID, err := strconv.ParseInt(c.Param("sessionId"), 10, 64)
	if err != nil || targetID <= 0 {
		return response.BadRequest(c, "INVALID_ID", "Invalid session ID")
	}

	if err := h.sessionUC.RevokeSession(c.Request().Context(), *principal, targetID, clientInfo(c)); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Message(c, "Session revoked")
}

// RevokeOthers kicks every device except the caller's.
func (h *SessionHandler) RevokeOthers(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return response.AppError(c, domainerrors.ErrUnauthenticated)
	}

	revoked, err := h.sessionUC.RevokeOthers(c.Request().Context(), *principal, clientInfo(c))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, RevokedResponse{Revoked: revoked})
}

// RevokeAll kicks every device, the caller's included.
func (h *SessionHandler) RevokeAll(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return response.AppError(c, domainerrors.ErrUnauthenticated)
	}

	revoked, err := h.sessionUC.RevokeAll(c.Request().Context(), *principal, clientInfo(c))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, RevokedResponse{Revoked: revoked})
}

// ListAccessLogs returns the caller's login history. ?limit= caps the rows.
func (h *SessionHandler) ListAccessLogs(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return response.AppError(c, domainerrors.ErrUnauthenticated)
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return response.BadRequest(c, "INVALID_LIMIT", "limit must be a number")
		}
		limit = parsed
	}

	logs, err := h.sessionUC.ListAccessLogs(c.Request().Context(), *principal, limit)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, logs)
}

// ListOnlineUsers returns the users currently connected.
func (h *SessionHandler) ListOnlineUsers(c echo.Context) error {
	users, err := h.sessionUC.ListOnlineUsers(c.Request().Context())
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, users)
}
