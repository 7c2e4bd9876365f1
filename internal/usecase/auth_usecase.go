// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"sessiongate/internal/domain/entity"
)

// --- Input DTOs ---

// ClientInfo describes the HTTP client behind a request. It feeds the access log.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	UserID     string `json:"userId" validate:"required,max=64"`
	Password   string `json:"password" validate:"required,max=72"`
	DeviceID   string `json:"deviceId" validate:"omitempty,max=64"`
	DeviceType string `json:"deviceType" validate:"omitempty,max=50"`
	Location   string `json:"location" validate:"omitempty,max=100"`
	KeepLogin  bool   `json:"keepLogin"`

	Client ClientInfo `json:"-"`
}

// Device returns the device context presented with the credentials.
func (in *LoginInput) Device() entity.DeviceContext {
	return entity.DeviceContext{
		DeviceID:   in.DeviceID,
		DeviceType: in.DeviceType,
		UserAgent:  in.Client.UserAgent,
		IPAddress:  in.Client.IPAddress,
		Location:   in.Location,
		KeepLogin:  in.KeepLogin,
	}
}

// RefreshInput carries the refresh token and, optionally, the access token it is paired with.
type RefreshInput struct {
	RefreshToken string
	AccessToken  string
}

// LogoutInput identifies the session to end. The access token may be expired.
// Without one, the refresh token is used to find the session.
type LogoutInput struct {
	AccessToken  string
	RefreshToken string
	Client       ClientInfo
}

// --- Output DTOs ---

// LoginOutput returns the generated tokens after a successful login.
type LoginOutput struct {
	AccessToken  string
	RefreshToken string
	User         entity.UserSummary
	DeviceID     string
	SessionID    int64
	KeepLogin    bool
	// RefreshTTL is the lifetime of RefreshToken; persistent cookies use it as max age.
	RefreshTTL time.Duration
}

// RefreshOutput returns the rotated token pair.
type RefreshOutput struct {
	AccessToken  string
	RefreshToken string
	SessionID    int64
	KeepLogin    bool
	RefreshTTL   time.Duration
}

// CheckOutput reports whether the presented access token still maps to a live session.
type CheckOutput struct {
	Authenticated bool                `json:"authenticated"`
	User          *entity.UserSummary `json:"user,omitempty"`
	ExpiresIn     int64               `json:"expiresIn"`
}

// AuthUsecase defines the credential and token lifecycle operations.
// This is the contract that the delivery layer depends on.
type AuthUsecase interface {
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)
	Logout(ctx context.Context, input *LogoutInput) error
	LogoutAll(ctx context.Context, principal entity.Principal, client ClientInfo) error
	Refresh(ctx context.Context, input *RefreshInput) (*RefreshOutput, error)
	Check(ctx context.Context, accessToken string) (*CheckOutput, error)
}
