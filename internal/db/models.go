package db

import (
	"time"
)

// Batch represents one conversion batch
type Batch struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Target    string     `json:"target"`
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
	Cancelled bool       `json:"cancelled"`
	StartedAt time.Time  `gorm:"index" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// FileOutcome is the recorded outcome of one file in a batch
type FileOutcome struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	BatchID      string    `gorm:"index;size:36" json:"batch_id"`
	FilePath     string    `json:"file_path"`
	OutputPath   string    `json:"output_path"`
	Status       string    `gorm:"index" json:"status"` // succeeded, failed, skipped
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileIndex tracks watched source files by content hash
type FileIndex struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	FilePath  string    `gorm:"uniqueIndex" json:"file_path"`
	FileMD5   string    `gorm:"index" json:"file_md5"`
	Status    string    `gorm:"index" json:"status"` // pending, processing, succeeded, failed, skipped
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	IndexPending    = "pending"
	IndexProcessing = "processing"
)

// Stats represents conversion statistics
type Stats struct {
	Batches        int64 `json:"batches"`
	TotalFiles     int64 `json:"total_files"`
	SucceededCount int64 `json:"succeeded_count"`
	FailedCount    int64 `json:"failed_count"`
	SkippedCount   int64 `json:"skipped_count"`
	IndexedFiles   int64 `json:"indexed_files"`
	PendingFiles   int64 `json:"pending_files"`
}
