package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lojf/kidstudio/internal/models"
)

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// Open connects to the SQLite file at path, migrates the schema and creates
// the indexes GORM cannot express through struct tags.
func Open(path string, level logger.LogLevel) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(path+dsnParams), &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// SQLite works best with a single writer; cap the pool accordingly.
	// This also serialises the capacity check + insert transactions.
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	log.Printf("database ready (sqlite %s)", path)
	return conn, nil
}

// Migrate runs AutoMigrate plus the hand-written indexes.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	stmts := []string{
		// phone is unique only among active registrations
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_reg_active_phone ON registrations(parent_phone) WHERE is_active = 1",
		"CREATE INDEX IF NOT EXISTS idx_part_event_status ON event_participants(event_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_ext_reg_created ON extension_history(registration_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_fin_reg_created ON financial_records(registration_id, created_at)",
	}
	for _, s := range stmts {
		if err := conn.Exec(s).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// ParseLogLevel maps DB_LOG_LEVEL values onto GORM's levels.
func ParseLogLevel(s string) logger.LogLevel {
	switch s {
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
