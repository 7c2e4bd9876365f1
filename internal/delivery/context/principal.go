package context

import (
	"log/slog"

	"sessiongate/internal/domain/entity"

	"github.com/labstack/echo/v4"
)

const (
	// KeyPrincipal is the key for the authenticated principal in echo.Context.
	KeyPrincipal ContextKey = "principal"

	// KeyGateError is the key for the reason a presented token was not accepted.
	KeyGateError ContextKey = "gate_error"
)

// SetPrincipal stores the identity accepted by the authentication gate and
// tags the request logger with it.
func SetPrincipal(c echo.Context, principal *entity.Principal) {
	c.Set(string(KeyPrincipal), principal)
	if principal != nil {
		AddLoggerAttrs(c,
			slog.String("user_id", principal.UserID),
			slog.Int64("session_id", principal.SessionID),
		)
	}
}

// GetPrincipal returns the accepted identity, if any.
func GetPrincipal(c echo.Context) (*entity.Principal, bool) {
	principal, ok := c.Get(string(KeyPrincipal)).(*entity.Principal)

	return principal, ok && principal != nil
}

// SetGateError remembers why a token was not accepted, so that RequireAuth can report it.
func SetGateError(c echo.Context, err error) {
	c.Set(string(KeyGateError), err)
}

// GetGateError returns the error stored by SetGateError.
func GetGateError(c echo.Context) error {
	err, _ := c.Get(string(KeyGateError)).(error)

	return err
}
