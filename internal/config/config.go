package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Directory DirectoryConfig
	Logging   LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string `validate:"required,numeric"`
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	Host            string `validate:"required"`
	Port            string `validate:"required"`
	User            string
	Password        string
	DBName          string `validate:"required"`
	SSLMode         string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int    `validate:"min=1"`
	MaxIdleConns    int    `validate:"min=0"`
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration `validate:"gt=0"`
}

// RedisConfig holds the connection settings for the response cache
type RedisConfig struct {
	URL string
}

// CacheConfig controls caching of GET directory responses
type CacheConfig struct {
	Enabled   bool
	TTL       time.Duration `validate:"min=0"`
	PrefixKey string
}

// DirectoryConfig holds the fallback averages and ranking limits used for summaries
type DirectoryConfig struct {
	// DefaultFallbackAverage applies to category pages without their own entry
	DefaultFallbackAverage  float64 `validate:"min=0"`
	LocationFallbackAverage float64 `validate:"min=0"`
	// FallbackAverages is keyed by "category|location" for a single page, or by
	// category alone, e.g. "b2b marketing agency|switzerland" or "gtm agency"
	FallbackAverages map[string]float64 `validate:"dive,min=0"`
	TopTagLimit      int                `validate:"min=1,max=50"`
	MaxTopTagLimit   int                `validate:"min=1,max=50,gtefield=TopTagLimit"`
}

// FallbackFor returns the fallback average for a page. The category and
// location pair wins over the category alone, which wins over the default.
func (d DirectoryConfig) FallbackFor(category, location string) float64 {
	if location != "" {
		if v, ok := d.FallbackAverages[FallbackKey(category, location)]; ok {
			return v
		}
	}
	if v, ok := d.FallbackAverages[strings.ToLower(category)]; ok {
		return v
	}
	return d.DefaultFallbackAverage
}

// FallbackKey builds the FallbackAverages key for a category page in a location
func FallbackKey(category, location string) string {
	return strings.ToLower(category) + "|" + strings.ToLower(location)
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string `validate:"omitempty,oneof=debug info warn error"`
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variables override, e.g. DATABASE_HOST
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.dbname", "gtm")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")
	v.SetDefault("database.connectTimeout", "1m")

	// Cache defaults, matching the hourly page revalidation
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.prefixKey", "directory")

	// Directory defaults
	v.SetDefault("directory.defaultFallbackAverage", 12000)
	v.SetDefault("directory.locationFallbackAverage", 10000)
	v.SetDefault("directory.topTagLimit", 5)
	v.SetDefault("directory.maxTopTagLimit", 20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
