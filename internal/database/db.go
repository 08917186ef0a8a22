package database

import (
	"fmt"
	"strings"

	"crm/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table managed by AutoMigrate, parents first.
var Models = []interface{}{
	&model.Permission{},
	&model.Role{},
	&model.User{},
	&model.Lead{},
	&model.Quotation{},
	&model.QuotationLineItem{},
	&model.AuditLog{},
}

// NewConnection initializes a new postgres connection pool using GORM
func NewConnection(dsn, logLevel string) (*gorm.DB, error) {
	return Open(postgres.Open(dsn), logLevel)
}

// Open connects through any GORM dialector.
func Open(dialector gorm.Dialector, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(ParseLogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}

// ParseLogLevel maps silent|error|warn|info to a GORM log level, defaulting to warn.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
