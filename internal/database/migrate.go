package database

import (
	"fibreflow/internal/models"
	"fibreflow/pkg/logger"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
		&models.Ticket{},
		// QContact同步
		&models.QContactSyncLog{},
		&models.SyncJobHistory{},
	)

	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")

	return nil
}
