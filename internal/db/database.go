package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sportsdash/internal/config"
	"sportsdash/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when the referenced event or key does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateCode is returned when an inserted key collides with an existing code.
	ErrDuplicateCode = errors.New("duplicate access key code")
	// ErrAlreadyExists is returned when an event id is already taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// Service is the persistent event and key store used by the managers.
type Service interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	AddSponsorLogo(ctx context.Context, logo *model.SponsorLogo) error

	CreateAccessKeys(ctx context.Context, keys []model.AccessKey) error
	ListAccessKeysByEvent(ctx context.Context, eventID string) ([]model.AccessKey, error)
	CountAccessKeysByStatus(ctx context.Context, eventID string) (map[model.KeyStatus]int64, error)
	UpdateAccessKeyStatus(ctx context.Context, id string, status model.KeyStatus) (*model.AccessKey, error)
	DeleteAccessKey(ctx context.Context, id string) (*model.AccessKey, error)
	ClaimAccessKey(ctx context.Context, code, participantID string, at time.Time) (*model.AccessKey, error)

	GetDB() *gorm.DB
}

type service struct {
	db *gorm.DB
}

// Option customizes how the database is opened.
type Option func(*gorm.Config)

// WithLogger sends query errors to log. Without it gorm logs nothing.
func WithLogger(log *slog.Logger) Option {
	return func(c *gorm.Config) {
		c.Logger = newQueryLogger(log)
	}
}

// Init opens the database connection based on the provided configuration
// and migrates the schema.
func Init(cfg config.DatabaseConfig, opts ...Option) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	gormConfig := &gorm.Config{TranslateError: true, Logger: gormlogger.Discard}
	for _, opt := range opts {
		opt(gormConfig)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(&model.Event{}, &model.SponsorLogo{}, &model.AccessKey{})
	if err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return db, nil
}

// NewService opens the database and wraps it in a Service.
func NewService(cfg config.DatabaseConfig, opts ...Option) (Service, error) {
	db, err := Init(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &service{db: db}, nil
}

// NewServiceFromDB wraps an already opened connection.
func NewServiceFromDB(db *gorm.DB) Service {
	return &service{db: db}
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

func (s *service) CreateEvent(ctx context.Context, event *model.Event) error {
	err := s.db.WithContext(ctx).Create(event).Error
	if isDuplicate(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (s *service) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := s.db.WithContext(ctx).Preload("Sponsors").Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	return &event, nil
}

func (s *service) ListEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// DeleteEvent removes the event together with its keys and sponsor logos.
func (s *service) DeleteEvent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&model.AccessKey{}).Error; err != nil {
			return fmt.Errorf("failed to delete keys of event %s: %w", id, err)
		}
		if err := tx.Where("event_id = ?", id).Delete(&model.SponsorLogo{}).Error; err != nil {
			return fmt.Errorf("failed to delete sponsor logos of event %s: %w", id, err)
		}
		result := tx.Where("id = ?", id).Delete(&model.Event{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete event %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *service) AddSponsorLogo(ctx context.Context, logo *model.SponsorLogo) error {
	if err := s.db.WithContext(ctx).Create(logo).Error; err != nil {
		return fmt.Errorf("failed to add sponsor logo: %w", err)
	}
	return nil
}

// CreateAccessKeys inserts all keys in one transaction. A code collision
// rolls back the whole batch and yields ErrDuplicateCode.
func (s *service) CreateAccessKeys(ctx context.Context, keys []model.AccessKey) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(keys, 200).Error
	})
	if isDuplicate(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("failed to create access keys: %w", err)
	}
	return nil
}

// ListAccessKeysByEvent returns the event's keys, newest first.
func (s *service) ListAccessKeysByEvent(ctx context.Context, eventID string) ([]model.AccessKey, error) {
	var keys []model.AccessKey
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at desc").
		Order("code asc").
		Find(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list access keys for event %s: %w", eventID, err)
	}
	return keys, nil
}

func (s *service) CountAccessKeysByStatus(ctx context.Context, eventID string) (map[model.KeyStatus]int64, error) {
	var rows []struct {
		Status model.KeyStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&model.AccessKey{}).
		Select("status, count(*) as count").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count access keys for event %s: %w", eventID, err)
	}
	counts := map[model.KeyStatus]int64{
		model.KeyStatusAvailable: 0,
		model.KeyStatusClaimed:   0,
		model.KeyStatusRevoked:   0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// UpdateAccessKeyStatus sets the status of one key and returns the updated row.
func (s *service) UpdateAccessKeyStatus(ctx context.Context, id string, status model.KeyStatus) (*model.AccessKey, error) {
	var key model.AccessKey
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&key).Error; err != nil {
			return err
		}
		if err := tx.Model(&key).Update("status", status).Error; err != nil {
			return err
		}
		key.Status = status
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update status of access key %s: %w", id, err)
	}
	return &key, nil
}

// DeleteAccessKey permanently removes one key and returns the removed row.
func (s *service) DeleteAccessKey(ctx context.Context, id string) (*model.AccessKey, error) {
	var key model.AccessKey
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&key).Error; err != nil {
			return err
		}
		return tx.Delete(&key).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete access key %s: %w", id, err)
	}
	return &key, nil
}

// ClaimAccessKey moves an AVAILABLE key with the given code to CLAIMED.
// Unknown codes and keys in any other state both yield ErrNotFound.
func (s *service) ClaimAccessKey(ctx context.Context, code, participantID string, at time.Time) (*model.AccessKey, error) {
	var key model.AccessKey
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ? AND status = ?", code, model.KeyStatusAvailable).
			First(&key).Error; err != nil {
			return err
		}
		result := tx.Model(&model.AccessKey{}).
			Where("id = ? AND status = ?", key.ID, model.KeyStatusAvailable).
			Updates(map[string]any{
				"status":        model.KeyStatusClaimed,
				"claimed_by_id": participantID,
				"claimed_at":    at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		key.Status = model.KeyStatusClaimed
		key.ClaimedByID = &participantID
		key.ClaimedAt = &at
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim access key: %w", err)
	}
	return &key, nil
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Older drivers do not translate constraint errors.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}
