// Package config assembles typed application settings from viper state,
// direct environment variables, and built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andeanvet/salescope/internal/erp"
	"github.com/andeanvet/salescope/internal/goals"
	"github.com/andeanvet/salescope/internal/service"
	"github.com/spf13/viper"
)

// Defaults applied when neither the config file nor the environment
// provides a value.
const (
	DefaultCachePath  = "$HOME/.local/share/salescope/cache.db"
	DefaultERPTimeout = 30 * time.Second
)

// Config carries every setting the CLI needs to assemble its
// collaborators.
type Config struct {
	ERP      erp.Config
	Goals    goals.Config
	Archive  ArchiveConfig
	Cache    CacheConfig
	Selector SelectorConfig
}

// ArchiveConfig points at the historical sales database.
type ArchiveConfig struct {
	DSN string
}

// CacheConfig locates the snapshot database. A zero TTL means the
// snapshot store's built-in default.
type CacheConfig struct {
	Path string
	TTL  time.Duration
}

// SelectorConfig tunes the live/archive routing decision. A zero
// cutoff year means the selector's built-in default.
type SelectorConfig struct {
	ArchiveCutoffYear int
}

// Load reads the full configuration. It follows this precedence per key:
// 1. Viper configuration (from config file or SALESCOPE_ env vars)
// 2. Direct environment variables (ODOO_*, GOOGLE_SHEETS_*, ARCHIVE_DATABASE_URL)
// 3. Default values
func Load() *Config {
	cfg := &Config{
		ERP: erp.Config{
			URL:      viper.GetString("erp.url"),
			Database: viper.GetString("erp.database"),
			Username: viper.GetString("erp.username"),
			APIKey:   viper.GetString("erp.api_key"),
			Timeout:  viper.GetDuration("erp.timeout"),
			Retry: service.RetryOptions{
				MaxAttempts: viper.GetInt("erp.retry_attempts"),
			},
		},
		Goals: goals.Config{
			ServiceAccountPath: viper.GetString("goals.service_account_path"),
			SpreadsheetID:      viper.GetString("goals.spreadsheet_id"),
			MemoTTL:            viper.GetDuration("goals.memo_ttl"),
		},
		Archive: ArchiveConfig{
			DSN: viper.GetString("archive.dsn"),
		},
		Cache: CacheConfig{
			Path: viper.GetString("cache.path"),
			TTL:  viper.GetDuration("cache.ttl"),
		},
		Selector: SelectorConfig{
			ArchiveCutoffYear: viper.GetInt("selector.archive_cutoff_year"),
		},
	}

	// Override with direct environment variables if not set
	if cfg.ERP.URL == "" {
		cfg.ERP.URL = os.Getenv("ODOO_URL")
	}
	if cfg.ERP.Database == "" {
		cfg.ERP.Database = os.Getenv("ODOO_DB")
	}
	if cfg.ERP.Username == "" {
		cfg.ERP.Username = os.Getenv("ODOO_USERNAME")
	}
	if cfg.ERP.APIKey == "" {
		cfg.ERP.APIKey = os.Getenv("ODOO_API_KEY")
	}
	if cfg.Goals.ServiceAccountPath == "" {
		cfg.Goals.ServiceAccountPath = os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")
	}
	if cfg.Goals.SpreadsheetID == "" {
		cfg.Goals.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}
	if cfg.Archive.DSN == "" {
		cfg.Archive.DSN = os.Getenv("ARCHIVE_DATABASE_URL")
	}

	// Defaults
	if cfg.ERP.Timeout <= 0 {
		cfg.ERP.Timeout = DefaultERPTimeout
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath
	}

	cfg.Goals.ServiceAccountPath = ExpandPath(cfg.Goals.ServiceAccountPath)
	cfg.Cache.Path = ExpandPath(cfg.Cache.Path)

	return cfg
}

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
