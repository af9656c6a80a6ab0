// Package database opens the SQL connections behind the gorm document store.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"unify/internal/config"
	"unify/internal/observability"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CustomGormLogger routes gorm's query log through slog.
type CustomGormLogger struct {
	logger *slog.Logger
	Config logger.Config
}

// NewGormLogger reports errors and queries slower than 200ms.
func NewGormLogger(l *slog.Logger) *CustomGormLogger {
	return &CustomGormLogger{
		logger: l,
		Config: logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	}
}

func (l *CustomGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.Config.LogLevel = level
	return &cp
}

func (l *CustomGormLogger) emit(ctx context.Context, floor logger.LogLevel, lvl slog.Level, msg string, attrs ...slog.Attr) {
	if l.Config.LogLevel < floor {
		return
	}
	l.logger.LogAttrs(ctx, lvl, msg, attrs...)
}

func (l *CustomGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, logger.Info, slog.LevelInfo, fmt.Sprintf(msg, data...))
}

func (l *CustomGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, logger.Warn, slog.LevelWarn, fmt.Sprintf(msg, data...))
}

func (l *CustomGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, logger.Error, slog.LevelError, fmt.Sprintf(msg, data...))
}

// Trace logs failed and slow statements, and every statement at Info.
func (l *CustomGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	stmt, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", stmt),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}

	slow := l.Config.SlowThreshold > 0 && elapsed > l.Config.SlowThreshold
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.emit(ctx, logger.Error, slog.LevelError, "GORM query error", append(attrs, slog.String("error", err.Error()))...)
	case slow:
		l.emit(ctx, logger.Warn, slog.LevelWarn, "GORM slow query", attrs...)
	default:
		l.emit(ctx, logger.Info, slog.LevelInfo, "GORM query", attrs...)
	}
}

// Connect opens the SQL database selected by DOCSTORE_BACKEND.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DocstoreBackend {
	case config.BackendPostgres:
		dialector = postgres.Open(cfg.PostgresDSN())
	case config.BackendSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("docstore backend %q is not SQL-backed", cfg.DocstoreBackend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(observability.GlobalLogger.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DocstoreBackend == config.BackendSQLite {
		// sqlite serializes writers; one connection avoids "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	observability.GlobalLogger.Info("Database connected successfully",
		slog.String("backend", cfg.DocstoreBackend))
	return db, nil
}
