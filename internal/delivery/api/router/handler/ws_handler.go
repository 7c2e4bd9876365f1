package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"sessiongate/config"
	"sessiongate/internal/delivery/api/cookie"
	"sessiongate/internal/delivery/api/response"
	deliverycontext "sessiongate/internal/delivery/context"
	"sessiongate/internal/domain/entity"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/domain/message"
	"sessiongate/internal/domain/service"
	"sessiongate/internal/errors"
	"sessiongate/internal/infra/realtime"
	"sessiongate/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// WSHandlerParams holds dependencies for WSHandler, injected by Fx.
type WSHandlerParams struct {
	fx.In

	Gate     usecase.Gate
	Registry *realtime.Registry
	Cookies  *cookie.Manager
	Config   *config.Config
	Logger   *slog.Logger
}

// WSHandler authenticates websocket handshakes and runs the per-connection read loop.
type WSHandler struct {
	gate     usecase.Gate
	registry *realtime.Registry
	cookies  *cookie.Manager
	upgrader websocket.Upgrader

	readLimit int64
	pongWait  time.Duration
	writeWait time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewWSHandler is the constructor for WSHandler.
func NewWSHandler(params WSHandlerParams) *WSHandler {
	wsCfg := params.Config.WebSocket

	return &WSHandler{
		gate:     params.Gate,
		registry: params.Registry,
		cookies:  params.Cookies,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(wsCfg.AllowedOrigins),
		},
		readLimit: wsCfg.ReadLimit,
		pongWait:  wsCfg.PongWait,
		writeWait: wsCfg.WriteWait,
		now:       time.Now,
		logger:    params.Logger,
	}
}

// originChecker allows any origin when none are configured. Requests without
// an Origin header come from non-browser clients and are always allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		return origin == "" || slices.Contains(allowed, origin)
	}
}

// Connect upgrades the request once the gate has confirmed the session. Any
// other outcome is answered with 401 before the upgrade.
func (h *WSHandler) Connect(c echo.Context) error {
	req := c.Request()

	result := h.gate.Authenticate(req.Context(), cookie.AccessToken(req, true))
	if result.Outcome != usecase.GateAccepted {
		if result.ClearCredentials {
			h.cookies.Clear(c)
		}

		return response.AppError(c, handshakeError(result))
	}

	ws, err := h.upgrader.Upgrade(c.Response(), req, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		deliverycontext.GetLoggerOrDefault(req.Context(), h.logger).Debug("Websocket upgrade failed", slog.Any("error", err))

		return nil
	}

	h.serve(context.WithoutCancel(req.Context()), ws, result.Identity)

	return nil
}

func handshakeError(result usecase.GateResult) domainerrors.AppError {
	switch {
	case result.Outcome == usecase.GateAnonymous:
		return domainerrors.ErrUnauthenticated
	case errors.Is(result.Err, domainerrors.ErrSessionNotFound):
		return domainerrors.ErrSessionNotFound
	case errors.Is(result.Err, domainerrors.ErrExpiredToken):
		return domainerrors.ErrExpiredToken
	default:
		return domainerrors.ErrInvalidToken
	}
}

// serve blocks until the socket fails or is closed by the registry.
func (h *WSHandler) serve(ctx context.Context, ws *websocket.Conn, principal *entity.Principal) {
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger).With(
		slog.String("user_id", principal.UserID),
		slog.Int64("session_id", principal.SessionID),
	)

	conn := realtime.NewConnection(principal.UserID, principal.SessionID, ws, h.writeWait)
	h.registry.Register(ctx, conn)

	done := make(chan struct{})
	defer func() {
		close(done)
		h.registry.Unregister(ctx, conn)
		_ = conn.Close()
	}()

	// A revocation between the handshake and Register found nothing to close.
	if err := h.gate.Confirm(ctx, principal); err != nil {
		if errors.IsAny(err, domainerrors.ErrSessionNotFound, domainerrors.ErrInvalidToken) {
			logger.Info("Session revoked during handshake", slog.Any("error", err))
			_ = conn.ForceClose(realtime.CloseCodeForceLogout, service.CloseReasonSessionGone)

			return
		}
		logger.Warn("Failed to confirm session after registration", slog.Any("error", err))
	}

	go h.keepAlive(conn, done)

	ws.SetReadLimit(h.readLimit)
	if err := ws.SetReadDeadline(time.Now().Add(h.pongWait)); err != nil {
		logger.Debug("Failed to set read deadline", slog.Any("error", err))

		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, realtime.CloseCodeForceLogout) {
				logger.Debug("Websocket closed unexpectedly", slog.Any("error", err))
			}

			return
		}

		h.dispatch(logger, conn, data)
	}
}

// keepAlive pings at 9/10 of the pong wait until done closes or a ping fails.
func (h *WSHandler) keepAlive(conn *realtime.Connection, done <-chan struct{}) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WritePing(); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) dispatch(logger *slog.Logger, conn *realtime.Connection, data []byte) {
	in, err := message.DecodeInbound(data)
	if err != nil {
		logger.Debug("Malformed realtime message", slog.Any("error", err))

		return
	}

	switch in.Type {
	case message.KindChat:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return
		}
		h.registry.Broadcast(message.Chat{
			Type:      message.KindChat,
			Sender:    conn.UserID(),
			Text:      text,
			CreatedAt: h.now(),
		})
	case message.KindMemoUpdate:
		h.registry.Broadcast(message.MemoUpdate{Type: message.KindMemoUpdate, UserID: conn.UserID()})
	case message.KindUserUpdate, message.KindNewDeviceLogin, message.KindForceLogout, message.KindSystemStatus:
		logger.Debug("Ignoring server-only message kind", slog.String("type", in.Type.String()))
	case message.KindUnknown:
		logger.Debug("Ignoring unknown message kind")
	}
}
