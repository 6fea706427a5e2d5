package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/logger"
)

type DatabaseMigration struct {
	gorm.Model
	Version string `gorm:"not null;uniqueIndex"`
}

// Migrate creates or updates every registered table and records the application version that
// ran the migration.
func Migrate(db *gorm.DB, version string) error {
	log := logger.GetLogger()

	if err := db.AutoMigrate(&DatabaseMigration{}); err != nil {
		return fmt.Errorf("failed to create 'database_migrations' table: %w", err)
	}
	for _, model := range SchemaRegistry {
		if err := db.AutoMigrate(model); err != nil {
			log.Error().
				Str("error_code", "75333e43-8157-4f0a-8e34-aa34e6e7c285").
				Err(err).
				Msgf("failed to auto migrate schema: %T", model)
			return err
		}
	}

	record := DatabaseMigration{Version: version}
	if err := db.Where(DatabaseMigration{Version: version}).FirstOrCreate(&record).Error; err != nil {
		return fmt.Errorf("failed to record migration version: %w", err)
	}
	log.Info().Str("version", version).Int("tables", len(SchemaRegistry)).Msg("database schema is up to date")
	return nil
}
