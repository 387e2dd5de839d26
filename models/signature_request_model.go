package models

import "time"

type EntityKind string

const (
	KindSplitSheet EntityKind = "split_sheet"
	KindDocument   EntityKind = "document"
)

// SignatureRequest maps a provider request id to the record it was issued
// for. Split sheets and documents share one id namespace at the provider, so
// inbound events are resolved through this table with a single lookup.
type SignatureRequest struct {
	ID        uint       `gorm:"primaryKey"`
	Provider  string     `gorm:"size:20;uniqueIndex:idx_signature_provider_request"`
	RequestID string     `gorm:"size:50;uniqueIndex:idx_signature_provider_request"`
	Kind      EntityKind `gorm:"size:20"`
	EntityID  uint
	Created   time.Time `gorm:"autoCreateTime"`
}
