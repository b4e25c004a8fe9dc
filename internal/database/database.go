package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSqliteDatabase opens (creating if needed) the local diagnostics database.
// Use "file::memory:" for an ephemeral database in tests.
func NewSqliteDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening diagnostics database: %w", err)
	}

	if err := db.AutoMigrate(&ValidationRecord{}); err != nil {
		return nil, fmt.Errorf("error migrating diagnostics database: %w", err)
	}

	return db, nil
}
