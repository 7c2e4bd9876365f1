package postgres

import (
	"context"
	"testing"
	"time"

	"sessiongate/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLogRepository_CreateAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccessLogRepository(db)
	ctx := context.Background()

	entries := []*entity.AccessLog{
		{UserID: "alice", SessionID: 1, Type: entity.AccessLogLogin, Browser: "Chrome", OS: "Windows", CreatedAt: baseTime},
		{UserID: "alice", SessionID: 1, Type: entity.AccessLogKick, Endpoint: entity.KickAllOthers, CreatedAt: baseTime.Add(time.Minute)},
		{UserID: "bob", SessionID: 2, Type: entity.AccessLogLogin, CreatedAt: baseTime},
		{UserID: "alice", SessionID: 1, Type: entity.AccessLogLogout, CreatedAt: baseTime.Add(2 * time.Minute)},
	}
	for _, entry := range entries {
		require.NoError(t, repo.Create(ctx, entry))
		assert.Positive(t, entry.ID)
	}

	logs, err := repo.ListByUserID(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, entity.AccessLogLogout, logs[0].Type)
	assert.Equal(t, entity.AccessLogKick, logs[1].Type)
	assert.Equal(t, entity.KickAllOthers, logs[1].Endpoint)

	logs, err = repo.ListByUserID(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "Chrome", logs[2].Browser)
}
