// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"sessiongate/config"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/domain/service"
	"sessiongate/internal/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// jwtService is a concrete implementation of the TokenService interface using HS256 JWTs.
type jwtService struct {
	accessSecret  []byte           // Secret key for signing access tokens.
	refreshSecret []byte           // Secret key for signing refresh tokens.
	accessTTL     time.Duration    // Time-to-live for access tokens.
	refreshTTL    time.Duration    // Default time-to-live for refresh tokens.
	now           func() time.Time // Clock used for issuing and validating.
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" || cfg.SecretKey.Refresh == "" {
		return nil, errors.New("jwt secrets must be provided")
	}

	accessTTL, refreshTTL := 15*time.Minute, 7*24*time.Hour
	if cfg.Auth != nil {
		if cfg.Auth.AccessTTL > 0 {
			accessTTL = cfg.Auth.AccessTTL
		}
		if cfg.Auth.RefreshTTL > 0 {
			refreshTTL = cfg.Auth.RefreshTTL
		}
	}

	return newJWTService(cfg.SecretKey.Access, cfg.SecretKey.Refresh, accessTTL, refreshTTL, time.Now), nil
}

func newJWTService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, now func() time.Time) *jwtService {
	return &jwtService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           now,
	}
}

func (s *jwtService) IssueAccessToken(userID string, sessionID int64) (string, error) {
	if userID == "" {
		return "", errors.Wrap(domainerrors.ErrInternalError, "user id is required for access token")
	}
	if sessionID <= 0 {
		return "", errors.Wrap(domainerrors.ErrInternalError, "session id is required for access token")
	}

	return s.sign(userID, sessionID, service.TokenTypeAccess, s.accessTTL, s.accessSecret)
}

func (s *jwtService) IssueRefreshToken(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.Wrap(domainerrors.ErrInternalError, "user id is required for refresh token")
	}
	if ttl <= 0 {
		ttl = s.refreshTTL
	}

	return s.sign(userID, 0, service.TokenTypeRefresh, ttl, s.refreshSecret)
}

func (s *jwtService) Validate(tokenString string) bool {
	_, err := s.ExtractClaims(tokenString, false)

	return err == nil
}

func (s *jwtService) ExtractClaims(tokenString string, allowExpired bool) (*service.Claims, error) {
	return s.parse(tokenString, s.accessSecret, service.TokenTypeAccess, allowExpired)
}

func (s *jwtService) ParseRefreshToken(tokenString string) (*service.Claims, error) {
	return s.parse(tokenString, s.refreshSecret, service.TokenTypeRefresh, false)
}

func (s *jwtService) sign(userID string, sessionID int64, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := s.now()
	claims := &service.Claims{
		SessionID: sessionID,
		Type:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(), // unique per token so two tokens minted in the same second differ
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}

func (s *jwtService) parse(tokenString string, secret []byte, tokenType string, allowExpired bool) (*service.Claims, error) {
	if tokenString == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "token is empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &service.Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(domainerrors.ErrExpiredToken, err.Error())
		}

		return nil, errors.Wrap(domainerrors.ErrInvalidToken, err.Error())
	}

	if claims.Type != tokenType {
		return nil, errors.Wrapf(domainerrors.ErrInvalidToken, "unexpected token type %q", claims.Type)
	}
	if claims.Subject == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "token has no subject")
	}

	return claims, nil
}
