package storage

import (
	"time"

	"github.com/tallybot/app/internal/common"
	gormlogger "gorm.io/gorm/logger"
)

// Config holds the GORM database settings.
// It wraps common.DatabaseConfig so callers do not depend on common directly.
type Config struct {
	DSN                  string
	LogLevel             gormlogger.LogLevel
	MaxIdleConns         int
	MaxOpenConns         int
	ConnMaxLifetime      time.Duration
	SkipDefaultTxn       bool
	PrepareStmt          bool
	DisableAutomaticPing bool
}

// ConfigFromEnv builds a Config from the centralized application config.
func ConfigFromEnv() (Config, error) {
	appConfig, err := common.LoadConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		DSN:                  appConfig.Database.DSN,
		LogLevel:             appConfig.Database.LogLevel,
		MaxIdleConns:         appConfig.Database.MaxIdleConns,
		MaxOpenConns:         appConfig.Database.MaxOpenConns,
		ConnMaxLifetime:      appConfig.Database.ConnMaxLifetime,
		SkipDefaultTxn:       appConfig.Database.SkipDefaultTxn,
		PrepareStmt:          appConfig.Database.PrepareStmt,
		DisableAutomaticPing: appConfig.Database.DisableAutomaticPing,
	}, nil
}
