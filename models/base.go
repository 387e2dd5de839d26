package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the identity and timestamps shared by every record. ID stays
// internal; UUID is the opaque identifier exposed to clients.
type Base struct {
	ID      uint      `json:"-" gorm:"primaryKey"`
	UUID    string    `json:"uuid" gorm:"size:36;uniqueIndex"`
	Created time.Time `json:"created" gorm:"autoCreateTime;index"`
	Updated time.Time `json:"updated" gorm:"autoUpdateTime;index"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == "" {
		b.UUID = uuid.NewString()
	}
	return nil
}
