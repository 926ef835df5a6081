package storage

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database. A DSN that looks like a
// postgres connection string selects the postgres driver; anything else
// is treated as a SQLite file path.
func Open(cfg Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage: empty DSN")
	}

	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(cfg.LogLevel),
		SkipDefaultTransaction: cfg.SkipDefaultTxn,
		PrepareStmt:            cfg.PrepareStmt,
		DisableAutomaticPing:   cfg.DisableAutomaticPing,
	}

	var dialector gorm.Dialector
	if isPostgresDSN(cfg.DSN) {
		dialector = postgres.Open(cfg.DSN)
	} else {
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("storage: failed to access sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Channel{}, &DailyPrompt{}, &Task{})
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
