package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"atelier/internal/models"
)

// Migrate ensures required tables and indexes exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Order{},
		&models.OrderItem{},
		&models.Artifact{},
		&models.Worker{},
	}
}
