package db

import (
	"gorm.io/gorm"

	"github.com/radview/radview-backend/internal/domain/imaging"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&imaging.Patient{},
		&imaging.Study{},
		&imaging.Series{},
		&imaging.Instance{},
	)
}
