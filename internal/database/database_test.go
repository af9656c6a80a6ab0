package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"unify/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestConnect_SQLite(t *testing.T) {
	cfg := &config.Config{
		DocstoreBackend: config.BackendSQLite,
		SQLitePath:      filepath.Join(t.TempDir(), "unify.db"),
	}
	db, err := Connect(cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Close())
}

func TestConnect_RejectsNonSQLBackend(t *testing.T) {
	_, err := Connect(&config.Config{DocstoreBackend: config.BackendMemory})
	assert.Error(t, err)
}

func TestCustomGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Empty(t, buf.String(), "fast queries are below Warn")

	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 2", 0 }, errors.New("boom"))
	assert.Contains(t, buf.String(), "GORM query error")

	buf.Reset()
	l.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 3", 0 }, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	silent := l.LogMode(logger.Silent)
	silent.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 4", 0 }, errors.New("boom"))
	assert.Empty(t, buf.String())
}
