package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the Kisan Sathi gateway.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	AssetCache  AssetCacheConfig  `mapstructure:"asset_cache"`
	Remote      RemoteConfig      `mapstructure:"remote"`
	AI          AIConfig          `mapstructure:"ai"`
	Cache       CacheTTLConfig    `mapstructure:"cache"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes the durable store connection.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// AssetCacheConfig controls the app-shell asset cache.
type AssetCacheConfig struct {
	Origin      string   `mapstructure:"origin"`
	Generation  string   `mapstructure:"generation"`
	Resources   []string `mapstructure:"resources"`
	OfflinePath string   `mapstructure:"offline_path"`
}

// RemoteConfig holds the upstream service endpoints the gateway talks to.
type RemoteConfig struct {
	SyncEndpoint         string `mapstructure:"sync_endpoint"`
	CropAnalysisEndpoint string `mapstructure:"crop_analysis_endpoint"`
	WeatherEndpoint      string `mapstructure:"weather_endpoint"`
	PricesEndpoint       string `mapstructure:"prices_endpoint"`
}

// AIConfig configures the advisory model proxy.
type AIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheTTLConfig tunes response cache lifetimes.
type CacheTTLConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// MaintenanceConfig tunes the background cleanup scheduler.
type MaintenanceConfig struct {
	CacheSchedule   string        `mapstructure:"cache_schedule"`
	SyncedSchedule  string        `mapstructure:"synced_schedule"`
	SyncedRetention time.Duration `mapstructure:"synced_retention"`
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

	v.SetEnvPrefix("KISAN")
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

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/kisansathi.sqlite")

	v.SetDefault("asset_cache.origin", "http://127.0.0.1:3000")
	v.SetDefault("asset_cache.generation", "kisan-sathi-v1")
	v.SetDefault("asset_cache.offline_path", "/offline.html")

	v.SetDefault("remote.sync_endpoint", "")
	v.SetDefault("remote.crop_analysis_endpoint", "")
	v.SetDefault("remote.weather_endpoint", "")
	v.SetDefault("remote.prices_endpoint", "")

	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.model", "gemini-1.5-flash-latest")
	v.SetDefault("ai.timeout", "30s")

	v.SetDefault("cache.default_ttl", "24h")

	v.SetDefault("maintenance.cache_schedule", "@hourly")
	v.SetDefault("maintenance.synced_schedule", "@daily")
	v.SetDefault("maintenance.synced_retention", "168h") // 7 days

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
