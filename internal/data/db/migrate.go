package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursesync/internal/domain/content"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&content.Course{},
		&content.Chapter{},
		&content.Lesson{},
		&content.Task{},
		&content.Condition{},
	)
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
