package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultAPIURL            = "https://api.mod.io/v1"
	DefaultGameID            = 2475
	DefaultUserAgent         = "modio-mod-indexer/dev (unknown-user)"
	DefaultDatabaseDriver    = "sqlite"
	DefaultDatabaseURL       = "mods.db"
	DefaultModsDir           = "mods"
	DefaultArchiveExtension  = "zip"
	DefaultPackageExtension  = ".pak"
	DefaultContainmentPrefix = "../../.."
	DefaultLogFile           = "modio-indexer.log"
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	ModioAccessToken string  `mapstructure:"MODIO_ACCESS_TOKEN"`
	ModioAPIKey      string  `mapstructure:"MODIO_API_KEY"`
	ModioAPIURL      string  `mapstructure:"MODIO_API_URL"`
	ModioGameID      uint32  `mapstructure:"MODIO_GAME_ID"`
	UserAgent        string  `mapstructure:"USERAGENT"`
	RateLimitRPS     float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int     `mapstructure:"RATE_LIMIT_BURST"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	ModsDir           string `mapstructure:"MODS_DIR"`
	ArchiveExtension  string `mapstructure:"ARCHIVE_EXTENSION"`
	PackageExtension  string `mapstructure:"PACKAGE_EXTENSION"`
	ContainmentPrefix string `mapstructure:"CONTAINMENT_PREFIX"`
	Workers           int    `mapstructure:"WORKERS"` // 0 uses GOMAXPROCS

	StorageBackend string `mapstructure:"STORAGE_BACKEND"` // fs or s3
	S3Endpoint     string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey    string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey    string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3Region       string `mapstructure:"S3_REGION"`
	S3UseSSL       bool   `mapstructure:"S3_USE_SSL"`

	LogFile       string `mapstructure:"LOG_FILE"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
}

var envKeys = []string{
	"MODIO_ACCESS_TOKEN", "MODIO_API_KEY", "MODIO_API_URL", "MODIO_GAME_ID", "USERAGENT",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"DATABASE_DRIVER", "DATABASE_URL",
	"MODS_DIR", "ARCHIVE_EXTENSION", "PACKAGE_EXTENSION", "CONTAINMENT_PREFIX", "WORKERS",
	"STORAGE_BACKEND", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET", "S3_REGION", "S3_USE_SSL",
	"LOG_FILE", "LOG_LEVEL", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS",
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	// Values in .env win over the inherited environment.
	envPath := filepath.Join(path, ".env")
	if err := godotenv.Overload(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("fatal error config file: %w", err)
	}

	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	viper.AutomaticEnv()
	for _, key := range envKeys {
		if err := viper.BindEnv(strings.ToLower(key), key); err != nil {
			slog.Warn("Unable to bind env var", "key", key, "error", err)
		}
	}

	if vipErr = viper.Unmarshal(&config); vipErr != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", vipErr)
	}

	processConfigDefaults(&config)
	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func processConfigDefaults(config *Config) {
	if config.ModioAPIURL == "" {
		config.ModioAPIURL = DefaultAPIURL
	}
	config.ModioAPIURL = strings.TrimRight(config.ModioAPIURL, "/")
	if config.ModioGameID == 0 {
		config.ModioGameID = DefaultGameID
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
		slog.Warn("USERAGENT not set in config or environment, using default.")
	}
	if config.RateLimitRPS <= 0 {
		config.RateLimitRPS = 1
	}
	if config.RateLimitBurst <= 0 {
		config.RateLimitBurst = 5
	}
	if config.DatabaseDriver == "" {
		config.DatabaseDriver = DefaultDatabaseDriver
	}
	config.DatabaseDriver = strings.ToLower(config.DatabaseDriver)
	if config.DatabaseURL == "" {
		config.DatabaseURL = DefaultDatabaseURL
	}
	if config.ModsDir == "" {
		config.ModsDir = DefaultModsDir
	}
	if config.ArchiveExtension == "" {
		config.ArchiveExtension = DefaultArchiveExtension
	}
	config.ArchiveExtension = strings.TrimPrefix(config.ArchiveExtension, ".")
	if config.PackageExtension == "" {
		config.PackageExtension = DefaultPackageExtension
	}
	if !strings.HasPrefix(config.PackageExtension, ".") {
		config.PackageExtension = "." + config.PackageExtension
	}
	if config.ContainmentPrefix == "" {
		config.ContainmentPrefix = DefaultContainmentPrefix
	}
	if config.Workers < 0 {
		config.Workers = 0
	}
	if config.StorageBackend == "" {
		config.StorageBackend = "fs"
	}
	config.StorageBackend = strings.ToLower(config.StorageBackend)
	if config.LogFile == "" {
		config.LogFile = DefaultLogFile
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogMaxSizeMB <= 0 {
		config.LogMaxSizeMB = 10
	}
	if config.LogMaxBackups <= 0 {
		config.LogMaxBackups = 3
	}
}

func validateAndEnsureDirectories(config *Config) error {
	switch config.DatabaseDriver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", config.DatabaseDriver)
	}

	switch config.StorageBackend {
	case "fs":
		if config.ModsDir == "" {
			slog.Error("MODS_DIR is not set")
			return fmt.Errorf("MODS_DIR is required")
		}
		if _, err := os.Stat(config.ModsDir); os.IsNotExist(err) {
			slog.Info("Mods directory does not exist, creating it", "path", config.ModsDir)
			if err := os.MkdirAll(config.ModsDir, 0755); err != nil {
				slog.Error("Failed to create mods directory", "path", config.ModsDir, "error", err)
				return err
			}
		} else if err != nil {
			slog.Error("Failed to check mods directory", "path", config.ModsDir, "error", err)
			return err
		}
	case "s3":
		if config.S3Endpoint == "" || config.S3Bucket == "" {
			return fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", config.StorageBackend)
	}
	return nil
}
