package database

import (
	"gorm.io/gorm"

	"github.com/kisansathi/gateway/internal/models"
)

// SchemaVersion is the monotonically increasing schema version. Bumping it
// signals a structural upgrade; AutoMigrate reconciles the live schema with
// the model definitions on every start.
const SchemaVersion = 1

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PendingRecord{},
		&models.CachedResponse{},
	)
}
