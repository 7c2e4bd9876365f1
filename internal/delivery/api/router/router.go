// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"sessiongate/internal/delivery/api/middleware"
	"sessiongate/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	SessionHandler *handler.SessionHandler
	WSHandler      *handler.WSHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	sessionHandler *handler.SessionHandler
	wsHandler      *handler.WSHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		sessionHandler: params.SessionHandler,
		wsHandler:      params.WSHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	// The handshake runs the gate itself so it can refuse before upgrading.
	e.GET("/ws", r.wsHandler.Connect)

	api := e.Group("/api")

	// Auth routes tolerate missing or expired tokens.
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/refresh", r.authHandler.Refresh)
		authGroup.POST("/logout", r.authHandler.Logout)
		authGroup.GET("/check", r.authHandler.Check)
		authGroup.POST("/logout-all", r.authHandler.LogoutAll, r.authMiddleware.Authenticate, r.authMiddleware.RequireAuth)
	}

	sessionsGroup := api.Group("/sessions")
	sessionsGroup.Use(r.authMiddleware.Authenticate, r.authMiddleware.RequireAuth)
	{
		sessionsGroup.GET("", r.sessionHandler.ListSessions)
		sessionsGroup.GET("/history", r.sessionHandler.ListAccessLogs)
		// Static segments are matched before the :sessionId parameter.
		sessionsGroup.DELETE("/others", r.sessionHandler.RevokeOthers)
		sessionsGroup.DELETE("/all", r.sessionHandler.RevokeAll)
		sessionsGroup.DELETE("/:sessionId", r.sessionHandler.RevokeSession)
	}

	usersGroup := api.Group("/users")
	usersGroup.Use(r.authMiddleware.Authenticate, r.authMiddleware.RequireAuth)
	{
		usersGroup.GET("/online", r.sessionHandler.ListOnlineUsers)
	}
}
