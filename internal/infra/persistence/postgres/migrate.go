package postgres

import (
	"context"

	"sessiongate/internal/errors"
	"sessiongate/internal/infra/persistence/model"

	"gorm.io/gorm"
)

// Migrate creates or updates the users, user_sessions and access_logs tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}

	return nil
}
