package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sessiongate/internal/delivery/api/response"
	"sessiongate/internal/delivery/api/validator"
	"sessiongate/internal/domain/entity"
	"sessiongate/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validator.New()

	return e
}

func newJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0")
	rec := httptest.NewRecorder()

	return e.NewContext(req, rec), rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)

	return body.Error.Code
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var body struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body.Data
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	cookies := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}

	return cookies
}

type fakeAuthUsecase struct {
	login     func(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error)
	logout    func(ctx context.Context, input *usecase.LogoutInput) error
	logoutAll func(ctx context.Context, principal entity.Principal, client usecase.ClientInfo) error
	refresh   func(ctx context.Context, input *usecase.RefreshInput) (*usecase.RefreshOutput, error)
	check     func(ctx context.Context, accessToken string) (*usecase.CheckOutput, error)
}

func (f *fakeAuthUsecase) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	return f.login(ctx, input)
}

func (f *fakeAuthUsecase) Logout(ctx context.Context, input *usecase.LogoutInput) error {
	return f.logout(ctx, input)
}

func (f *fakeAuthUsecase) LogoutAll(ctx context.Context, principal entity.Principal, client usecase.ClientInfo) error {
	return f.logoutAll(ctx, principal, client)
}

func (f *fakeAuthUsecase) Refresh(ctx context.Context, input *usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	return f.refresh(ctx, input)
}

func (f *fakeAuthUsecase) Check(ctx context.Context, accessToken string) (*usecase.CheckOutput, error) {
	return f.check(ctx, accessToken)
}

type fakeSessionUsecase struct {
	revokeSession  func(ctx context.Context, principal entity.Principal, targetSessionID int64, client usecase.ClientInfo) error
	revokeOthers   func(ctx context.Context, principal entity.Principal, client usecase.ClientInfo) (int64, error)
	listAccessLogs func(ctx context.Context, principal entity.Principal, limit int) ([]*entity.AccessLog, error)
}

func (f *fakeSessionUsecase) ListSessions(context.Context, entity.Principal) ([]entity.SessionView, error) {
	return nil, nil
}

func (f *fakeSessionUsecase) RevokeSession(ctx context.Context, principal entity.Principal, targetSessionID int64, client usecase.ClientInfo) error {
	return f.revokeSession(ctx, principal, targetSessionID, client)
}

func (f *fakeSessionUsecase) RevokeOthers(ctx context.Context, principal entity.Principal, client usecase.ClientInfo) (int64, error) {
	return f.revokeOthers(ctx, principal, client)
}

func (f *fakeSessionUsecase) RevokeAll(context.Context, entity.Principal, usecase.ClientInfo) (int64, error) {
	return 0, nil
}

func (f *fakeSessionUsecase) ListOnlineUsers(context.Context) ([]entity.UserSummary, error) {
	return nil, nil
}

func (f *fakeSessionUsecase) ListAccessLogs(ctx context.Context, principal entity.Principal, limit int) ([]*entity.AccessLog, error) {
	return f.listAccessLogs(ctx, principal, limit)
}
