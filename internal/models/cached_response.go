package models

import (
	"time"

	"gorm.io/datatypes"
)

// CachedResponse is a memoized read result keyed by a caller-chosen string.
// An entry whose ExpiresAt has passed is never served; it is removed the
// moment a lookup finds it expired.
type CachedResponse struct {
	Key       string         `gorm:"primaryKey;size:256" json:"key"`
	Response  datatypes.JSON `gorm:"type:json" json:"response"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `gorm:"index" json:"expires_at"`
}

// TableName keeps the table name aligned with the persisted schema.
func (CachedResponse) TableName() string { return "cached_responses" }
