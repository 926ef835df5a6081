package common

import (
	"os"
	"path/filepath"
)

// GetDataDir returns the base data directory path.
// Priority:
// 1. TALLY_DIR from config
// 2. $HOME/.tallybot (default)
// 3. ./data (fallback if HOME is not set)
func GetDataDir() string {
	cfg, err := LoadConfig()
	if err == nil && cfg.Directory.TallyDir != "" {
		return cfg.Directory.TallyDir
	}

	if homeDir := os.Getenv("HOME"); homeDir != "" {
		return filepath.Join(homeDir, ".tallybot")
	}

	// Fallback: ./data
	return "./data"
}

// GetDatabasePath returns the SQLite database file path.
// Default: {DataDir}/tallybot.db
func GetDatabasePath() string {
	cfg, err := LoadConfig()
	if err == nil && cfg.Directory.SQLiteDatabase != "" {
		return cfg.Directory.SQLiteDatabase
	}
	return filepath.Join(GetDataDir(), "tallybot.db")
}
