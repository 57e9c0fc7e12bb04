package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pulsewatch/internal/logger"
	"github.com/pulsewatch/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Initialize opens the database connection and migrates the schema.
func Initialize(dbPath string) error {
	var initErr error
	once.Do(func() {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			initErr = fmt.Errorf("create database directory: %w", err)
			return
		}

		var err error
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			initErr = fmt.Errorf("connect to database: %w", err)
			return
		}

		if err := db.AutoMigrate(
			&models.Project{},
			&models.MetricSample{},
			&models.Alert{},
		); err != nil {
			initErr = fmt.Errorf("migrate database: %w", err)
			return
		}

		log := logger.WithComponent("database")
		log.Info().Str("path", dbPath).Msg("database initialized")
	})

	return initErr
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	if db == nil {
		panic("Database not initialized. Call Initialize() first")
	}
	return db
}

// Close closes the database connection
func Close() error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get underlying *sql.DB: %w", err)
	}

	return sqlDB.Close()
}
