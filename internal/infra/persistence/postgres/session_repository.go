package postgres

import (
	"context"
	"time"

	"sessiongate/internal/domain/entity"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/domain/repository"
	"sessiongate/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// sessionRepository implements the domain.SessionRepository interface using GORM.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create inserts the session and copies the generated ID back onto the entity.
func (repo *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	sessionM := fromSessionDomain(session)
	now := time.Now().UTC()
	if sessionM.CreatedAt.IsZero() {
		sessionM.CreatedAt = now
	}
	if sessionM.LastAccessedAt.IsZero() {
		sessionM.LastAccessedAt = sessionM.CreatedAt
	}

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
	}

	session.ID = sessionM.ID
	session.CreatedAt = sessionM.CreatedAt
	session.LastAccessedAt = sessionM.LastAccessedAt

	return nil
}

// FindByID retrieves a session by its ID.
func (repo *sessionRepository) FindByID(ctx context.Context, id int64) (*entity.Session, error) {
	return repo.findOne(ctx, "failed to find session by id", "id = ?", id)
}

// FindByUserAndDevice retrieves the session a device holds for a user.
func (repo *sessionRepository) FindByUserAndDevice(ctx context.Context, userID, deviceID string) (*entity.Session, error) {
	return repo.findOne(ctx, "failed to find session by device", "user_id = ? AND device_id = ?", userID, deviceID)
}

// FindByRefreshTokenHash retrieves a session by the hash of its current refresh token.
func (repo *sessionRepository) FindByRefreshTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error) {
	return repo.findOne(ctx, "failed to find session by refresh token", "refresh_token_hash = ?", tokenHash)
}

func (repo *sessionRepository) findOne(ctx context.Context, msg string, query string, args ...any) (*entity.Session, error) {
	var sessionM model.SessionModel
	if err := repo.db.WithContext(ctx).Where(query, args...).Take(&sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, msg)
	}

	return toSessionDomain(&sessionM), nil
}

// ListByUserID returns the user's sessions, most recently accessed first.
func (repo *sessionRepository) ListByUserID(ctx context.Context, userID string) ([]*entity.Session, error) {
	var sessionMs []model.SessionModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_accessed_at DESC").
		Order("id DESC").
		Find(&sessionMs).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list sessions")
	}

	sessions := make([]*entity.Session, 0, len(sessionMs))
	for i := range sessionMs {
		sessions = append(sessions, toSessionDomain(&sessionMs[i]))
	}

	return sessions, nil
}

// CountByUserID counts the user's sessions, ignoring excludeID when it is positive.
func (repo *sessionRepository) CountByUserID(ctx context.Context, userID string, excludeID int64) (int64, error) {
	var count int64
	err := repo.userScope(ctx, userID, excludeID).
		Model(&model.SessionModel{}).
		Count(&count).Error
	if err != nil {
		return 0, domainerrors.NewDatabaseExecuteError(err, "failed to count sessions")
	}

	return count, nil
}

// FindOldestByUserID returns the least recently accessed session, earliest inserted first on ties.
func (repo *sessionRepository) FindOldestByUserID(ctx context.Context, userID string, excludeID int64) (*entity.Session, error) {
	var sessionM model.SessionModel
	err := repo.userScope(ctx, userID, excludeID).
		Order("last_accessed_at ASC").
		Order("id ASC").
		Take(&sessionM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find oldest session")
	}

	return toSessionDomain(&sessionM), nil
}

func (repo *sessionRepository) userScope(ctx context.Context, userID string, excludeID int64) *gorm.DB {
	scope := repo.db.WithContext(ctx).Where("user_id = ?", userID)
	if excludeID > 0 {
		scope = scope.Where("id <> ?", excludeID)
	}

	return scope
}

// UpdateDevice rewrites device metadata, refresh token hash and last access of an existing row.
func (repo *sessionRepository) UpdateDevice(ctx context.Context, session *entity.Session) error {
	// A map keeps zero values such as keep_login=false in the statement.
	return repo.update(ctx, session.ID, map[string]any{
		"refresh_token_hash": session.RefreshTokenHash,
		"device_type":        session.DeviceType,
		"user_agent":         session.UserAgent,
		"ip_address":         session.IPAddress,
		"location":           session.Location,
		"keep_login":         session.KeepLogin,
		"last_accessed_at":   session.LastAccessedAt.UTC(),
	}, "failed to update session device")
}

// UpdateRefreshToken rotates the refresh token hash with a compare-and-swap on
// the current value, so two requests holding the same token cannot both win.
func (repo *sessionRepository) UpdateRefreshToken(ctx context.Context, id int64, oldHash, newHash string) error {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ? AND refresh_token_hash = ?", id, oldHash).
		Update("refresh_token_hash", newHash)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to rotate refresh token")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := repo.db.WithContext(ctx).Model(&model.SessionModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to check rotated session")
	}
	if count == 0 {
		return repository.ErrSessionNotFound
	}

	return repository.ErrRefreshTokenRotated
}

// TouchLastAccessed records activity on the session.
func (repo *sessionRepository) TouchLastAccessed(ctx context.Context, id int64, at time.Time) error {
	return repo.update(ctx, id, map[string]any{
		"last_accessed_at": at.UTC(),
	}, "failed to touch session")
}

func (repo *sessionRepository) update(ctx context.Context, id int64, values map[string]any, msg string) error {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, msg)
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

// DeleteByID removes a single session.
func (repo *sessionRepository) DeleteByID(ctx context.Context, id int64) error {
	result := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.SessionModel{})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete session")
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

// DeleteByUserID removes every session of the user.
func (repo *sessionRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result := repo.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete user sessions")
	}

	return result.RowsAffected, nil
}

// DeleteOthers removes every session of the user except keepID.
func (repo *sessionRepository) DeleteOthers(ctx context.Context, userID string, keepID int64) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("user_id = ? AND id <> ?", userID, keepID).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete other sessions")
	}

	return result.RowsAffected, nil
}

// DeleteInactiveSince removes sessions last accessed before cutoff.
func (repo *sessionRepository) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("last_accessed_at < ?", cutoff.UTC()).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete inactive sessions")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

func toSessionDomain(data *model.SessionModel) *entity.Session {
	if data == nil {
		return nil
	}

	return &entity.Session{
		ID:               data.ID,
		UserID:           data.UserID,
		RefreshTokenHash: data.RefreshTokenHash,
		DeviceID:         data.DeviceID,
		DeviceType:       data.DeviceType,
		UserAgent:        data.UserAgent,
		IPAddress:        data.IPAddress,
		Location:         data.Location,
		KeepLogin:        data.KeepLogin,
		CreatedAt:        data.CreatedAt,
		LastAccessedAt:   data.LastAccessedAt,
	}
}

func fromSessionDomain(data *entity.Session) *model.SessionModel {
	if data == nil {
		return nil
	}

	return &model.SessionModel{
		ID:               data.ID,
		UserID:           data.UserID,
		RefreshTokenHash: data.RefreshTokenHash,
		DeviceID:         data.DeviceID,
		DeviceType:       data.DeviceType,
		UserAgent:        data.UserAgent,
		IPAddress:        data.IPAddress,
		Location:         data.Location,
		KeepLogin:        data.KeepLogin,
		CreatedAt:        data.CreatedAt.UTC(),
		LastAccessedAt:   data.LastAccessedAt.UTC(),
	}
}
