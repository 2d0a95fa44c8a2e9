package datastore

import (
	"time"

	"github.com/frogwatch/frogwatch-go/internal/datastore/entities"
	"github.com/frogwatch/frogwatch-go/internal/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold defines the duration after which a query is logged as slow.
const slowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(newGormLogAdapter(), gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// performAutoMigration runs the schema migrations for all document tables.
func performAutoMigration(db *gorm.DB, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&entities.RecordingEntity{},
		&entities.CandidateEntity{},
		&entities.HistoryEntity{},
		&entities.UserEntity{},
	); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}

	getLogger().Info("Database schema migrated",
		"db_type", dbType,
		"connection", connectionInfo)
	return nil
}
