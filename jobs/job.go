package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

type Job struct {
	ID        uint      `gorm:"primaryKey"`
	Kind      string    `gorm:"size:64;index"`
	Payload   string    `gorm:"type:text"`
	Status    Status    `gorm:"size:16;index:idx_jobs_status_run_after"`
	Attempts  int       `gorm:"not null;default:0"`
	RunAfter  time.Time `gorm:"index:idx_jobs_status_run_after"`
	LastError string    `gorm:"type:text"`
	Created   time.Time `gorm:"autoCreateTime"`
	Updated   time.Time `gorm:"autoUpdateTime"`
}

// Enqueue inserts a job that is due immediately. db may be a transaction.
func Enqueue(db *gorm.DB, kind string, payload any) error {
	return EnqueueAt(db, kind, payload, time.Now().UTC())
}

func EnqueueAt(db *gorm.DB, kind string, payload any, at time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	job := Job{
		Kind:     kind,
		Payload:  string(data),
		Status:   StatusPending,
		RunAfter: at.UTC(),
	}
	if err := db.Create(&job).Error; err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}

// Bind decodes a job payload. A payload that does not decode will never
// succeed, so the error is permanent.
func Bind(payload []byte, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return Permanent(fmt.Errorf("decode payload: %w", err))
	}
	return nil
}
