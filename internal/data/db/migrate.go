package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(delivery.Models()...)
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("running migrations")
	return AutoMigrateAll(s.db)
}
