package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the inspectd backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Push        PushConfig        `mapstructure:"push"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Sweeper     SweeperConfig     `mapstructure:"sweeper"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the media store for report photos.
type StorageConfig struct {
	Type              string `mapstructure:"type"`
	BasePath          string `mapstructure:"base_path"`
	BaseURL           string `mapstructure:"base_url"`
	Bucket            string `mapstructure:"bucket"`
	Region            string `mapstructure:"region"`
	Endpoint          string `mapstructure:"endpoint"`
	AccessKey         string `mapstructure:"access_key"`
	SecretKey         string `mapstructure:"secret_key"`
	UploadConcurrency int    `mapstructure:"upload_concurrency"`
}

// PushConfig configures Firebase Cloud Messaging.
type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT   JWTSettings   `mapstructure:"jwt"`
	Admin AdminSettings `mapstructure:"admin"`
}

// JWTSettings configures access tokens. AccessTokenTTL also bounds device sessions
// and accepts the short forms 30s, 15m, 24h, 7d and 1w.
type JWTSettings struct {
	Secret         string `mapstructure:"secret"`
	Issuer         string `mapstructure:"issuer"`
	AccessTokenTTL string `mapstructure:"access_token_ttl"`
}

// AdminSettings seeds the first administrator on start-up when Email is set.
type AdminSettings struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// SweeperConfig controls the stale session sweep.
type SweeperConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	IntervalMS int64             `mapstructure:"interval_ms"`
	BatchSize  int               `mapstructure:"batch_size"`
	Lock       SweeperLockConfig `mapstructure:"lock"`
}

// SweeperLockConfig enables the cross-instance Redis lock.
type SweeperLockConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// MaintenanceConfig holds housekeeping settings.
type MaintenanceConfig struct {
	NotificationRetentionDays int `mapstructure:"notification_retention_days"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Interval returns the sweep interval as a duration.
func (c SweeperConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("INSPECTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/inspectd.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./data/media")
	v.SetDefault("storage.base_url", "/media")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.upload_concurrency", 4)

	v.SetDefault("push.enabled", false)

	v.SetDefault("auth.jwt.issuer", "inspectd")
	v.SetDefault("auth.jwt.access_token_ttl", "7d")
	v.SetDefault("auth.admin.name", "Administrator")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval_ms", 3600000)
	v.SetDefault("sweeper.batch_size", 500)
	v.SetDefault("sweeper.lock.enabled", false)
	v.SetDefault("sweeper.lock.ttl", "5m")

	v.SetDefault("maintenance.notification_retention_days", 90)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
