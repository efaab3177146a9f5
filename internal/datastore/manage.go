package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wildsight/wildsight-go/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("datastore")
}

// slowQueryThreshold marks queries worth logging as slow.
const slowQueryThreshold = 1 * time.Second

// createGormLogger configures the GORM logger used by both stores.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// performAutoMigration creates or updates the schema. The service assumes a
// fixed schema after startup; there is no conditional per-request migration.
func performAutoMigration(db *gorm.DB, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&User{},
		&Sighting{},
		&Report{},
		&AdminHistory{},
		&UserNotification{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	logger.Info("database ready",
		"type", dbType,
		"connection", connectionInfo)
	return nil
}
