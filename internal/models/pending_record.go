package models

import (
	"time"

	"gorm.io/datatypes"
)

// Category identifies the kind of offline action a pending record captures.
type Category string

// Known pending record categories.
const (
	CategoryCropAnalysis Category = "crop-analysis"
	CategoryWeatherData  Category = "weather-data"
	CategoryMarketPrices Category = "market-prices"
	CategoryVoiceQuery   Category = "voice-query"
)

// Valid reports whether the category is one of the fixed enumerated set.
func (c Category) Valid() bool {
	switch c {
	case CategoryCropAnalysis, CategoryWeatherData, CategoryMarketPrices, CategoryVoiceQuery:
		return true
	}
	return false
}

// PendingRecord is a durable record of an action performed while offline.
// Records are insert-only; the sync coordinator flips Synced to true and
// records are otherwise kept as history until explicit cleanup.
type PendingRecord struct {
	ID        string         `gorm:"primaryKey;size:128" json:"id"`
	Category  Category       `gorm:"size:32;index" json:"category"`
	Payload   datatypes.JSON `gorm:"type:json" json:"payload"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	Synced    bool           `gorm:"index;default:false" json:"synced"`
}

// TableName keeps the table name aligned with the persisted schema.
func (PendingRecord) TableName() string { return "offline_data" }
