package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/marcin-skalski/review-radar/internal/config"
	"github.com/marcin-skalski/review-radar/internal/github"
)

const (
	keySettings      = "settings"
	keyLastFetchTime = "last_fetch_time"
)

// SQLite persists buckets and scalar state with GORM.
type SQLite struct {
	db     *gorm.DB
	logger *slog.Logger
}

type gormLogger struct {
	level  logger.LogLevel
	logger *slog.Logger
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level, logger: l.logger}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.logger.Error("gorm query error", "err", err, "duration", elapsed, "sql", sql, "rows", rows)
	case elapsed > 200*time.Millisecond:
		l.logger.Warn("slow query", "duration", elapsed, "sql", sql, "rows", rows)
	case l.level >= logger.Info:
		l.logger.Debug("gorm query", "duration", elapsed, "sql", sql, "rows", rows)
	}
}

func newGormLogger(log *slog.Logger) logger.Interface {
	level := logger.Warn
	if log.Enabled(context.Background(), slog.LevelDebug) {
		level = logger.Info
	}
	return (&gormLogger{logger: log}).LogMode(level)
}

// Open creates (or opens) the database at path and migrates the schema.
func Open(path string, log *slog.Logger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")

	if err := db.AutoMigrate(&BucketModel{}, &KVModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLite{db: db, logger: log}, nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetBucket returns nil when the category was never fetched.
func (s *SQLite) GetBucket(ctx context.Context, category github.Category) (*Bucket, error) {
	var m BucketModel
	err := s.db.WithContext(ctx).Where("category = ?", string(category)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", category, err)
	}
	prs := m.PRs
	if prs == nil {
		prs = []github.PullRequest{}
	}
	return &Bucket{PRs: prs, LastUpdated: m.LastUpdated}, nil
}

// SaveBucket replaces the whole bucket for category.
func (s *SQLite) SaveBucket(ctx context.Context, category github.Category, b Bucket) error {
	prs := b.PRs
	if prs == nil {
		prs = []github.PullRequest{}
	}
	m := BucketModel{
		Category:    string(category),
		PRs:         prs,
		LastUpdated: b.LastUpdated.UTC(),
	}
	err := withRetry(func() error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	}, 3)
	if err != nil {
		return fmt.Errorf("save bucket %s: %w", category, err)
	}
	return nil
}

func (s *SQLite) LastFetchTime(ctx context.Context) (time.Time, error) {
	v, ok, err := s.getKV(ctx, keyLastFetchTime)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last fetch time %q: %w", v, err)
	}
	return t, nil
}

func (s *SQLite) SetLastFetchTime(ctx context.Context, t time.Time) error {
	return s.setKV(ctx, keyLastFetchTime, t.UTC().Format(time.RFC3339Nano))
}

// LoadSettings reports ok=false when nothing was saved yet.
func (s *SQLite) LoadSettings(ctx context.Context) (config.Settings, bool, error) {
	v, ok, err := s.getKV(ctx, keySettings)
	if err != nil || !ok {
		return config.Settings{}, false, err
	}
	var settings config.Settings
	if err := json.Unmarshal([]byte(v), &settings); err != nil {
		return config.Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return settings, true, nil
}

func (s *SQLite) SaveSettings(ctx context.Context, settings config.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.setKV(ctx, keySettings, string(data))
}

func (s *SQLite) getKV(ctx context.Context, key string) (string, bool, error) {
	var m KVModel
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return m.Value, true, nil
}

func (s *SQLite) setKV(ctx context.Context, key, value string) error {
	m := KVModel{Key: key, Value: value}
	err := withRetry(func() error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	}, 3)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// withRetry retries while sqlite reports the database as busy or locked.
func withRetry(fn func() error, maxRetries int) error {
	var err error
	for i := 0; i <= maxRetries; i++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	return err
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
