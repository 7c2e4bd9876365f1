package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"sessiongate/config"
	"sessiongate/internal/errors"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}

	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func TestGormSlogLogger_Trace(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.Database.SlowQueryThreshold = 50 * time.Millisecond
	sqlFn := func() (string, int64) { return "SELECT * FROM user_sessions", 1 }

	tests := []struct {
		name    string
		elapsed time.Duration
		err     error
		want    string
	}{
		{name: "missing row is quiet", err: gorm.ErrRecordNotFound},
		{name: "failure logged", err: errors.New("deadlock detected"), want: "Query failed"},
		{name: "slow query warned", elapsed: time.Second, want: "Slow query"},
		{name: "fast query quiet without debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, buf := newBufferLogger()
			l := newGormSlogLogger(base, cfg)

			l.Trace(context.Background(), time.Now().Add(-tt.elapsed), sqlFn, tt.err)

			if tt.want == "" {
				assert.Empty(t, buf.String())
			} else {
				assert.Contains(t, buf.String(), tt.want)
			}
		})
	}
}

func TestGormSlogLogger_NilLoggerIsSilent(t *testing.T) {
	l := newGormSlogLogger(nil, config.NewTestConfig())

	assert.NotPanics(t, func() {
		l.Error(context.Background(), "boom %d", 1)
		l.Trace(context.Background(), time.Now(), func() (string, int64) { return "", 0 }, errors.New("boom"))
	})
}

func TestLogPoolWait(t *testing.T) {
	base, buf := newBufferLogger()

	logPoolWait(context.Background(), base, sql.DBStats{WaitCount: 2}, sql.DBStats{WaitCount: 2})
	assert.Empty(t, buf.String())

	logPoolWait(context.Background(), base,
		sql.DBStats{WaitCount: 2, WaitDuration: time.Millisecond},
		sql.DBStats{WaitCount: 4, WaitDuration: 201 * time.Millisecond},
	)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "avg_wait=100ms")
}
