package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/errors"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestErrorMiddleware_HandleHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "wrapped app error", err: errors.Wrap(domainerrors.ErrForbidden, "revoke"), wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "echo http error", err: echo.NewHTTPError(http.StatusMethodNotAllowed), wantStatus: http.StatusMethodNotAllowed, wantCode: "HTTP_ERROR"},
		{name: "database error", err: domainerrors.NewDatabaseExecuteError(errors.New("deadlock"), "insert"), wantStatus: http.StatusInternalServerError},
		{name: "unknown error", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	mw := NewErrorMiddleware(newDiscardLogger())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			mw.HandleHTTPError(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec))
			}
			assert.NotContains(t, rec.Body.String(), "deadlock")
		})
	}
}

func TestErrorMiddleware_CommittedResponseUntouched(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	assert.NoError(t, c.NoContent(http.StatusAccepted))

	NewErrorMiddleware(newDiscardLogger()).HandleHTTPError(errors.New("late"), c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}
