package context

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"sessiongate/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPrincipal_TagsRequestLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	base := slog.New(slog.NewTextHandler(buf, nil))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithLogger(req.Context(), base))
	c := e.NewContext(req, httptest.NewRecorder())

	SetPrincipal(c, &entity.Principal{UserID: "alice", SessionID: 42})

	got, ok := GetPrincipal(c)
	require.True(t, ok)
	assert.Equal(t, "alice", got.UserID)

	GetLogger(c.Request().Context()).Info("revoked")
	assert.Contains(t, buf.String(), "user_id=alice")
	assert.Contains(t, buf.String(), "session_id=42")
}

func TestSetPrincipal_WithoutScopedLogger(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	SetPrincipal(c, &entity.Principal{UserID: "alice", SessionID: 1})

	assert.Nil(t, GetLogger(c.Request().Context()))
	_, ok := GetPrincipal(c)
	assert.True(t, ok)
}

func TestGetRequestID_Sources(t *testing.T) {
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	SetRequestID(c, "from-echo")
	assert.Equal(t, "from-echo", GetRequestID(c))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRequestID(context.Background(), "from-ctx"))
	c = e.NewContext(req, httptest.NewRecorder())
	assert.Equal(t, "from-ctx", GetRequestID(c))

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	first := GetRequestID(c)
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, GetRequestID(c))
}

func TestGateError_RoundTrip(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.NoError(t, GetGateError(c))

	errExpired := assert.AnError
	SetGateError(c, errExpired)
	assert.Equal(t, errExpired, GetGateError(c))
}
