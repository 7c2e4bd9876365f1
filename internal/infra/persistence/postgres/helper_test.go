package postgres

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"sessiongate/config"
	"sessiongate/internal/domain/entity"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB opens a migrated sqlite database private to the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "sessiongate.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newGormSlogLogger(newDiscardLogger(), config.NewTestConfig()),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serializes writers the way the row lock does on PostgreSQL.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(context.Background(), db))

	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string) *entity.User {
	t.Helper()

	user := &entity.User{ID: id, Name: "User " + id, PasswordHash: "hash", Role: entity.RoleUser}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))

	return user
}

func seedSession(t *testing.T, db *gorm.DB, userID, deviceID string, lastAccessed time.Time) *entity.Session {
	t.Helper()

	session := &entity.Session{
		UserID:           userID,
		DeviceID:         deviceID,
		RefreshTokenHash: "hash-" + userID + "-" + deviceID,
		DeviceType:       "Desktop",
		CreatedAt:        lastAccessed,
		LastAccessedAt:   lastAccessed,
	}
	require.NoError(t, NewSessionRepository(db).Create(context.Background(), session))

	return session
}
