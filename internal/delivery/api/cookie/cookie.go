// Package cookie reads and writes the token cookies shared by the API handlers
// and the authentication middleware.
package cookie

import (
	"net/http"
	"strings"
	"time"

	"sessiongate/config"

	"github.com/labstack/echo/v4"
)

const (
	AccessTokenName  = "accessToken"
	RefreshTokenName = "refreshToken"

	// TokenQueryParam carries the access token on websocket handshakes.
	TokenQueryParam = "token"

	bearerPrefix = "Bearer "
)

// Manager sets and clears the token cookie pair.
type Manager struct {
	secure    bool
	accessTTL time.Duration
}

// NewManager builds a cookie manager from the auth settings.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{secure: cfg.Auth.CookieSecure, accessTTL: cfg.Auth.AccessTTL}
}

// SetTokens writes both token cookies. They persist across browser restarts
// only with keepLogin, each living as long as its token; otherwise they are
// session cookies.
func (m *Manager) SetTokens(c echo.Context, accessToken, refreshToken string, keepLogin bool, refreshTTL time.Duration) {
	accessMaxAge, refreshMaxAge := 0, 0
	if keepLogin {
		accessMaxAge = int(m.accessTTL.Seconds())
		refreshMaxAge = int(refreshTTL.Seconds())
	}

	c.SetCookie(m.build(AccessTokenName, accessToken, accessMaxAge))
	c.SetCookie(m.build(RefreshTokenName, refreshToken, refreshMaxAge))
}

// Clear expires both token cookies.
func (m *Manager) Clear(c echo.Context) {
	c.SetCookie(m.build(AccessTokenName, "", -1))
	c.SetCookie(m.build(RefreshTokenName, "", -1))
}

func (m *Manager) build(name, value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
	if maxAge < 0 {
		cookie.Expires = time.Unix(0, 0)
	}

	return cookie
}

// AccessToken returns the access token from the Authorization header, then
// the cookie, then (when allowQuery is set) the token query parameter.
func AccessToken(r *http.Request, allowQuery bool) string {
	if header := r.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, bearerPrefix) {
		if token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)); token != "" {
			return token
		}
	}

	if cookie, err := r.Cookie(AccessTokenName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if allowQuery {
		return r.URL.Query().Get(TokenQueryParam)
	}

	return ""
}

// RefreshToken returns the refresh token cookie value.
func RefreshToken(r *http.Request) string {
	if cookie, err := r.Cookie(RefreshTokenName); err == nil {
		return cookie.Value
	}

	return ""
}
