package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/test.sqlite", cfg.Database.Path)

	require.Equal(t, "http://app.internal:3000", cfg.AssetCache.Origin)
	require.Equal(t, "kisan-sathi-v2", cfg.AssetCache.Generation)
	require.Equal(t, []string{"/", "/dashboard", "/offline.html"}, cfg.AssetCache.Resources)
	require.Equal(t, "/offline.html", cfg.AssetCache.OfflinePath)

	require.Equal(t, "https://sync.example.com/api/offline", cfg.Remote.SyncEndpoint)
	require.Equal(t, "https://api.example.com/crop-analysis", cfg.Remote.CropAnalysisEndpoint)
	require.Equal(t, "https://api.example.com/weather", cfg.Remote.WeatherEndpoint)
	require.Equal(t, "https://api.example.com/prices", cfg.Remote.PricesEndpoint)

	require.Equal(t, "https://model.example.com", cfg.AI.BaseURL)
	require.Equal(t, "gemini-1.5-pro", cfg.AI.Model)
	require.Equal(t, "test-key", cfg.AI.APIKey)
	require.Equal(t, 45*time.Second, cfg.AI.Timeout)

	require.Equal(t, 12*time.Hour, cfg.Cache.DefaultTTL)

	require.Equal(t, "@every 30m", cfg.Maintenance.CacheSchedule)
	require.Equal(t, 72*time.Hour, cfg.Maintenance.SyncedRetention)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "kisan-sathi-v1", cfg.AssetCache.Generation)
	require.Equal(t, "/offline.html", cfg.AssetCache.OfflinePath)
	require.Equal(t, "gemini-1.5-flash-latest", cfg.AI.Model)
	require.Equal(t, 24*time.Hour, cfg.Cache.DefaultTTL)
	require.Equal(t, "@hourly", cfg.Maintenance.CacheSchedule)
	require.Equal(t, 168*time.Hour, cfg.Maintenance.SyncedRetention)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}
