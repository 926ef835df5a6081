package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	gormlogger "gorm.io/gorm/logger"
)

// Config holds every setting the application reads.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Cycle     CycleConfig     `yaml:"cycle"`
	Directory DirectoryConfig `yaml:"directory"`
}

// AppConfig carries the base application settings.
type AppConfig struct {
	// ENV is the runtime environment (development, production)
	ENV string `yaml:"env"`
	// LogLevel is the application log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig carries the database settings.
type DatabaseConfig struct {
	// DSN is the database connection string
	DSN string `yaml:"dsn"`
	// LogLevel is the GORM log level
	LogLevel gormlogger.LogLevel `yaml:"log_level"`
	// MaxIdleConns is the number of idle connections kept in the pool
	MaxIdleConns int `yaml:"max_idle_conns"`
	// MaxOpenConns is the maximum number of pooled connections
	MaxOpenConns int `yaml:"max_open_conns"`
	// ConnMaxLifetime is the maximum lifetime of a connection
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	// SkipDefaultTxn disables GORM's per-write default transaction
	SkipDefaultTxn bool `yaml:"skip_default_txn"`
	// PrepareStmt enables the prepared statement cache
	PrepareStmt bool `yaml:"prepare_stmt"`
	// DisableAutomaticPing disables the automatic ping on open
	DisableAutomaticPing bool `yaml:"disable_automatic_ping"`
}

// TelegramConfig carries the Telegram bot settings.
type TelegramConfig struct {
	// Token is the Telegram bot token
	Token string `yaml:"token"`
}

// CycleConfig carries the daily cycle settings.
type CycleConfig struct {
	// PromptTime is the channel-local time (HH:MM) at which prompts are posted
	PromptTime string `yaml:"prompt_time"`
	// RecapTime is the channel-local time (HH:MM) at which the recap is posted
	RecapTime string `yaml:"recap_time"`
	// DefaultTimezone is the IANA zone applied when activation names none
	DefaultTimezone string `yaml:"default_timezone"`
	// SendDelay is the pause between prompt sends during fan-out
	SendDelay time.Duration `yaml:"send_delay"`
}

// DirectoryConfig carries directory path settings.
type DirectoryConfig struct {
	// TallyDir is the base data directory (env TALLY_DIR only, default: $HOME/.tallybot)
	TallyDir string `yaml:"-"`
	// SQLiteDatabase is the SQLite database file path
	SQLiteDatabase string `yaml:"sqlite_database"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// InitConfig initializes the configuration singleton.
// With an empty configPath it tries ${TALLY_DIR}/config.yaml and falls back
// to the environment. File values are overridden by environment variables.
func InitConfig(configPath string) error {
	var err error
	once.Do(func() {
		if configPath == "" {
			configPath = filepath.Join(getTallyDir(), "config.yaml")
		}

		if _, statErr := os.Stat(configPath); statErr == nil {
			instance, err = LoadConfigFromFile(configPath)
		} else {
			instance, err = LoadConfigFromEnv()
		}
	})
	return err
}

// GetConfig returns the singleton Config instance.
// InitConfig should be called first.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		_ = InitConfig("")
	}
	return instance
}

// LoadConfig returns the singleton configuration.
func LoadConfig() (*Config, error) {
	return GetConfig(), nil
}

// LoadConfigFromFile loads the configuration from a YAML file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg = mergeWithEnv(cfg)

	return cfg, nil
}

// LoadConfigFromEnv loads the configuration from environment variables.
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{
		App:       loadAppConfig(),
		Database:  loadDatabaseConfig(),
		Telegram:  loadTelegramConfig(),
		Cycle:     loadCycleConfig(),
		Directory: loadDirectoryConfig(),
	}

	return cfg, nil
}

// mergeWithEnv overrides YAML values with environment variables.
func mergeWithEnv(cfg *Config) *Config {
	// App
	if env := os.Getenv("TALLY_ENV"); env != "" {
		cfg.App.ENV = env
	}
	if logLevel := os.Getenv("TALLY_LOG_LEVEL"); logLevel != "" {
		cfg.App.LogLevel = logLevel
	}

	// Database
	if dsn := os.Getenv("TALLY_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if logLevel := os.Getenv("TALLY_DB_LOG_LEVEL"); logLevel != "" {
		cfg.Database.LogLevel = parseLogLevel(logLevel)
	}
	if maxIdle := os.Getenv("TALLY_DB_MAX_IDLE"); maxIdle != "" {
		cfg.Database.MaxIdleConns = parseIntWithDefault(maxIdle, cfg.Database.MaxIdleConns)
	}
	if maxOpen := os.Getenv("TALLY_DB_MAX_OPEN"); maxOpen != "" {
		cfg.Database.MaxOpenConns = parseIntWithDefault(maxOpen, cfg.Database.MaxOpenConns)
	}
	if lifetime := os.Getenv("TALLY_DB_CONN_LIFETIME"); lifetime != "" {
		cfg.Database.ConnMaxLifetime = parseDurationWithDefault(lifetime, cfg.Database.ConnMaxLifetime)
	}
	if skipTxn := os.Getenv("TALLY_DB_SKIP_DEFAULT_TXN"); skipTxn != "" {
		cfg.Database.SkipDefaultTxn = parseBoolWithDefault(skipTxn, cfg.Database.SkipDefaultTxn)
	}
	if prepStmt := os.Getenv("TALLY_DB_PREPARE_STMT"); prepStmt != "" {
		cfg.Database.PrepareStmt = parseBoolWithDefault(prepStmt, cfg.Database.PrepareStmt)
	}

	// Telegram
	if token := os.Getenv("TALLY_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}

	// Cycle
	if promptTime := os.Getenv("TALLY_PROMPT_TIME"); promptTime != "" {
		cfg.Cycle.PromptTime = promptTime
	}
	if recapTime := os.Getenv("TALLY_RECAP_TIME"); recapTime != "" {
		cfg.Cycle.RecapTime = recapTime
	}
	if tz := os.Getenv("TALLY_DEFAULT_TIMEZONE"); tz != "" {
		cfg.Cycle.DefaultTimezone = tz
	}
	if delay := os.Getenv("TALLY_SEND_DELAY"); delay != "" {
		cfg.Cycle.SendDelay = parseDurationWithDefault(delay, cfg.Cycle.SendDelay)
	}

	// Directory
	if tallyDir := os.Getenv("TALLY_DIR"); tallyDir != "" {
		cfg.Directory.TallyDir = tallyDir
	}
	if sqliteDB := os.Getenv("TALLY_SQLITE_DATABASE"); sqliteDB != "" {
		cfg.Directory.SQLiteDatabase = sqliteDB
	}

	return cfg
}

func loadAppConfig() AppConfig {
	return AppConfig{
		ENV:      getEnvOrDefault("TALLY_ENV", "production"),
		LogLevel: getEnvOrDefault("TALLY_LOG_LEVEL", "info"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	dsn := os.Getenv("TALLY_DATABASE_URL")
	if dsn == "" {
		// Without TALLY_DATABASE_URL fall back to SQLite (local use).
		// Computed inline instead of via GetDatabasePath to avoid a cycle.
		sqliteDB := os.Getenv("TALLY_SQLITE_DATABASE")
		if sqliteDB == "" {
			sqliteDB = filepath.Join(getTallyDir(), "tallybot.db")
		}
		dsn = sqliteDB
	}

	cfg := DatabaseConfig{
		DSN:             dsn,
		LogLevel:        parseLogLevel(os.Getenv("TALLY_DB_LOG_LEVEL")),
		MaxIdleConns:    parseIntWithDefault(os.Getenv("TALLY_DB_MAX_IDLE"), 5),
		MaxOpenConns:    parseIntWithDefault(os.Getenv("TALLY_DB_MAX_OPEN"), 20),
		ConnMaxLifetime: parseDurationWithDefault(os.Getenv("TALLY_DB_CONN_LIFETIME"), 30*time.Minute),
		SkipDefaultTxn:  parseBoolWithDefault(os.Getenv("TALLY_DB_SKIP_DEFAULT_TXN"), true),
		PrepareStmt:     parseBoolWithDefault(os.Getenv("TALLY_DB_PREPARE_STMT"), false),
	}

	if v, ok := lookupEnvBool("TALLY_DB_DISABLE_AUTO_PING"); ok {
		cfg.DisableAutomaticPing = v
	}

	return cfg
}

func loadTelegramConfig() TelegramConfig {
	return TelegramConfig{
		Token: os.Getenv("TALLY_TELEGRAM_TOKEN"),
	}
}

func loadCycleConfig() CycleConfig {
	return CycleConfig{
		PromptTime:      getEnvOrDefault("TALLY_PROMPT_TIME", "06:00"),
		RecapTime:       getEnvOrDefault("TALLY_RECAP_TIME", "05:59"),
		DefaultTimezone: getEnvOrDefault("TALLY_DEFAULT_TIMEZONE", "Europe/Riga"),
		SendDelay:       parseDurationWithDefault(os.Getenv("TALLY_SEND_DELAY"), 500*time.Millisecond),
	}
}

func loadDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		TallyDir:       getTallyDir(),
		SQLiteDatabase: os.Getenv("TALLY_SQLITE_DATABASE"),
	}
}

// getTallyDir returns TALLY_DIR or the default data directory.
func getTallyDir() string {
	tallyDir := os.Getenv("TALLY_DIR")
	if tallyDir != "" {
		return tallyDir
	}

	if homeDir := os.Getenv("HOME"); homeDir != "" {
		return filepath.Join(homeDir, ".tallybot")
	}

	// Fallback: ./data
	return "./data"
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(value string) gormlogger.LogLevel {
	switch value {
	case "silent", "SILENT":
		return gormlogger.Silent
	case "error", "ERROR":
		return gormlogger.Error
	case "warn", "WARN":
		return gormlogger.Warn
	case "info", "INFO":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func parseIntWithDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationWithDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

func parseBoolWithDefault(value string, def bool) bool {
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func lookupEnvBool(key string) (bool, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false
	}
	return parsed, true
}

// Validate checks that the required settings are present.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TALLY_TELEGRAM_TOKEN is required")
	}
	if _, err := time.LoadLocation(c.Cycle.DefaultTimezone); err != nil {
		return fmt.Errorf("TALLY_DEFAULT_TIMEZONE is not a valid IANA zone: %w", err)
	}
	return nil
}
