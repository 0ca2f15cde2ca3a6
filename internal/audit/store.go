// Package audit persists the action queue's append-only trail for the
// current session. The default DSN is an in-memory sqlite database, so
// nothing outlives the process.
package audit

import (
	"context"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

// Store is a gorm-backed audit sink
type Store struct {
	db *gorm.DB
}

// NewStore opens the audit database and migrates the entry schema.
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.ActionQueueEntry{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Record appends one entry to the trail
func (s *Store) Record(ctx context.Context, entry models.ActionQueueEntry) error {
	return s.db.WithContext(ctx).Create(&entry).Error
}

// List returns the most recent entries, newest first, up to limit.
func (s *Store) List(ctx context.Context, limit int) ([]models.ActionQueueEntry, error) {
	var entries []models.ActionQueueEntry
	q := s.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
