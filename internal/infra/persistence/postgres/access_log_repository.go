package postgres

import (
	"context"
	"time"

	"sessiongate/internal/domain/entity"
	domainerrors "sessiongate/internal/domain/errors"
	"sessiongate/internal/domain/repository"
	"sessiongate/internal/infra/persistence/model"

	"gorm.io/gorm"
)

type accessLogRepository struct {
	db *gorm.DB
}

// NewAccessLogRepository creates a new access log repository.
func NewAccessLogRepository(db *gorm.DB) repository.AccessLogRepository {
	return &accessLogRepository{db: db}
}

// Create appends an audit row.
func (repo *accessLogRepository) Create(ctx context.Context, log *entity.AccessLog) error {
	logM := fromAccessLogDomain(log)
	if logM.CreatedAt.IsZero() {
		logM.CreatedAt = time.Now().UTC()
	}

	if err := repo.db.WithContext(ctx).Create(logM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create access log")
	}

	log.ID = logM.ID
	log.CreatedAt = logM.CreatedAt

	return nil
}

// ListByUserID returns the newest entries first.
func (repo *accessLogRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*entity.AccessLog, error) {
	var logMs []model.AccessLogModel
	query := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&logMs).Error; err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list access logs")
	}

	logs := make([]*entity.AccessLog, 0, len(logMs))
	for i := range logMs {
		logs = append(logs, toAccessLogDomain(&logMs[i]))
	}

	return logs, nil
}

// --- Mapper Functions ---

func toAccessLogDomain(data *model.AccessLogModel) *entity.AccessLog {
	return &entity.AccessLog{
		ID:        data.ID,
		UserID:    data.UserID,
		SessionID: data.SessionID,
		Type:      entity.AccessLogType(data.Type),
		IPAddress: data.IPAddress,
		UserAgent: data.UserAgent,
		Browser:   data.Browser,
		OS:        data.OS,
		Location:  data.Location,
		Endpoint:  data.Endpoint,
		CreatedAt: data.CreatedAt,
	}
}

func fromAccessLogDomain(data *entity.AccessLog) *model.AccessLogModel {
	return &model.AccessLogModel{
		ID:        data.ID,
		UserID:    data.UserID,
		SessionID: data.SessionID,
		Type:      string(data.Type),
		IPAddress: data.IPAddress,
		UserAgent: data.UserAgent,
		Browser:   data.Browser,
		OS:        data.OS,
		Location:  data.Location,
		Endpoint:  data.Endpoint,
		CreatedAt: data.CreatedAt.UTC(),
	}
}
