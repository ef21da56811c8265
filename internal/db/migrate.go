package db

import (
	"gameshelf/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	if err := db.Gorm.AutoMigrate(
		&models.Thing{},
		&models.Tag{},
		&models.ThingTag{},
	); err != nil {
		return err
	}

	// Expression index backing the case-insensitive name filter and sort.
	return db.Gorm.Exec(
		"CREATE INDEX IF NOT EXISTS idx_catalog_things_name_lower ON catalog_things (LOWER(name))",
	).Error
}
