package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// queryLogger routes gorm's logging into slog. It never logs SQL text,
// since statements carry key codes and participant IDs, and it stays quiet
// on the not-found and duplicate errors that callers turn into results.
type queryLogger struct {
	log   *slog.Logger
	level gormlogger.LogLevel
}

func newQueryLogger(log *slog.Logger) gormlogger.Interface {
	return &queryLogger{log: log.With("component", "db"), level: gormlogger.Error}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *q
	c.level = level
	return &c
}

func (q *queryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if q.level >= gormlogger.Info {
		q.log.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if q.level >= gormlogger.Warn {
		q.log.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if q.level >= gormlogger.Error {
		q.log.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, _ func() (string, int64), err error) {
	if q.level < gormlogger.Error || err == nil {
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return
	}
	q.log.ErrorContext(ctx, "Database query failed", "error", err, "elapsed", time.Since(begin))
}
