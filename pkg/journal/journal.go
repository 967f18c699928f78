// Package journal persists remount attempts in a local SQLite database so
// that `remounter history` can show them after the fact.
package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/remounter/pkg/monitor"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// ErrPathRequired is returned by Open without a database path.
var ErrPathRequired = errors.New("journal path is required")

// Journal is a GORM-backed monitor.Recorder.
type Journal struct {
	db *gorm.DB
}

var _ monitor.Recorder = (*Journal)(nil)

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	// WAL lets `remounter history` read while the daemon writes.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// RecordAttempt stores one attempt.
func (j *Journal) RecordAttempt(ctx context.Context, a monitor.Attempt) error {
	if err := j.db.WithContext(ctx).Create(entryFromAttempt(a)).Error; err != nil {
		return fmt.Errorf("failed to record attempt %s: %w", a.ID, err)
	}
	return nil
}

// Filter narrows List.
type Filter struct {
	// Share restricts results to one share name.
	Share string
	// Since drops attempts started before it.
	Since time.Time
	// FailedOnly drops successful attempts.
	FailedOnly bool
	// Limit caps the result; 0 means DefaultLimit.
	Limit int
}

// List returns attempts matching f, newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]*Entry, error) {
	q := j.db.WithContext(ctx).Model(&Entry{})
	if f.Share != "" {
		q = q.Where("share = ?", f.Share)
	}
	if !f.Since.IsZero() {
		q = q.Where("started_at >= ?", f.Since.UTC())
	}
	if f.FailedOnly {
		q = q.Where("success = ?", false)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var entries []*Entry
	if err := q.Order("started_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return entries, nil
}

// Get returns one attempt by ID.
func (j *Journal) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	if err := j.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// Prune deletes attempts started before cutoff and returns how many were
// removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := j.db.WithContext(ctx).Where("started_at < ?", cutoff.UTC()).Delete(&Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Healthcheck pings the database.
func (j *Journal) Healthcheck(ctx context.Context) error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}
