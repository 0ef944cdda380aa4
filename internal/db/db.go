package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/blinkenlights/convertster/internal/converter"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DB wraps the history database
type DB struct {
	conn *gorm.DB
}

// Init opens the sqlite database at path and migrates the schema
func Init(path string) (*DB, error) {
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	// SQLite only supports one writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := conn.AutoMigrate(&Batch{}, &FileOutcome{}, &FileIndex{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateBatch records the start of a batch
func (db *DB) CreateBatch(id, target string, total int) error {
	return db.conn.Create(&Batch{
		ID:        id,
		Target:    target,
		Total:     total,
		StartedAt: time.Now(),
	}).Error
}

// InsertOutcome records one file outcome of a batch
func (db *DB) InsertOutcome(batchID string, o converter.Outcome) error {
	rec := &FileOutcome{
		BatchID:    batchID,
		FilePath:   o.Path,
		OutputPath: o.Output,
		Status:     o.Status.String(),
	}
	if o.Err != nil {
		rec.ErrorMessage = o.Err.Error()
	}
	return db.conn.Create(rec).Error
}

// FinishBatch stores the final counts of a batch
func (db *DB) FinishBatch(id string, s converter.Summary) error {
	now := time.Now()
	res := db.conn.Model(&Batch{}).Where("id = ?", id).Updates(map[string]interface{}{
		"succeeded": s.Succeeded,
		"failed":    s.Failed,
		"skipped":   s.Skipped,
		"cancelled": s.Cancelled,
		"ended_at":  &now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("batch %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// GetBatch retrieves a batch by id, returning nil when it does not exist
func (db *DB) GetBatch(id string) (*Batch, error) {
	var b Batch
	err := db.conn.First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBatches lists batches, newest first
func (db *DB) ListBatches(limit, offset int) ([]*Batch, error) {
	batches := []*Batch{}
	err := db.conn.Order("started_at DESC").Limit(limit).Offset(offset).Find(&batches).Error
	return batches, err
}

// ListOutcomes lists the outcomes of a batch in the order they were recorded
func (db *DB) ListOutcomes(batchID string) ([]*FileOutcome, error) {
	outcomes := []*FileOutcome{}
	err := db.conn.Where("batch_id = ?", batchID).Order("id ASC").Find(&outcomes).Error
	return outcomes, err
}

// GetStats retrieves conversion statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}
	if err := db.conn.Model(&Batch{}).Count(&stats.Batches).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.conn.Model(&FileOutcome{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.TotalFiles += r.Count
		switch r.Status {
		case converter.StatusSucceeded.String():
			stats.SucceededCount = r.Count
		case converter.StatusFailed.String():
			stats.FailedCount = r.Count
		case converter.StatusSkipped.String():
			stats.SkippedCount = r.Count
		}
	}

	if err := db.conn.Model(&FileIndex{}).Count(&stats.IndexedFiles).Error; err != nil {
		return nil, err
	}
	if err := db.conn.Model(&FileIndex{}).Where("status = ?", IndexPending).Count(&stats.PendingFiles).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// GetIndex retrieves a file index entry by path, returning nil when it does not exist
func (db *DB) GetIndex(path string) (*FileIndex, error) {
	var rec FileIndex
	err := db.conn.First(&rec, "file_path = ?", path).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertIndex records path with its md5 as pending. It reports changed=false and leaves the
// row alone when the stored md5 matches and the last conversion succeeded.
func (db *DB) UpsertIndex(path, md5 string) (changed bool, err error) {
	existing, err := db.GetIndex(path)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.FileMD5 == md5 && existing.Status == converter.StatusSucceeded.String() {
		return false, nil
	}

	rec := &FileIndex{FilePath: path, FileMD5: md5, Status: IndexPending}
	err = db.conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_path"}},
		DoUpdates: clause.AssignmentColumns([]string{"file_md5", "status", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetIndexStatus updates the status of an indexed path
func (db *DB) SetIndexStatus(path, status string) error {
	return db.conn.Model(&FileIndex{}).Where("file_path = ?", path).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

// ListIndex lists file index entries with optional status filter
func (db *DB) ListIndex(status string, limit, offset int) ([]*FileIndex, error) {
	q := db.conn.Model(&FileIndex{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	files := []*FileIndex{}
	err := q.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&files).Error
	return files, err
}
