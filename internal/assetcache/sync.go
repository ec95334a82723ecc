package assetcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Background sync trigger tags fired when connectivity is restored.
const (
	TagCropAnalysisSync = "crop-analysis-sync"
	TagWeatherSync      = "weather-sync"
)

// OfflineDataPartition holds queued payloads awaiting crop-analysis sync.
const OfflineDataPartition = "offline-data"

// WeatherAssetPath is the generation entry refreshed by weather-sync.
const WeatherAssetPath = "/api/weather"

const cropAnalysisKeyFragment = "crop-analysis"

// WeatherCache receives each payload fetched by weather-sync. The durable
// response cache implements it so a routed GET /api/weather can still serve
// the refreshed payload when connectivity drops again.
type WeatherCache interface {
	CacheWeather(ctx context.Context, weather any) error
}

// QueueOfflinePayload stashes a JSON payload in the offline-data partition
// under the given key until the next crop-analysis sync drains it.
func (m *Manager) QueueOfflinePayload(key string, body []byte) {
	m.storage.PartitionPut(OfflineDataPartition, key, &StoredResponse{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	})
}

// RegisterSyncHandlers binds the two connectivity-restoration triggers.
// A nil weatherCache skips the response-cache write-through.
func (m *Manager) RegisterSyncHandlers(reg *Registry, cropEndpoint, weatherEndpoint string, weatherCache WeatherCache) {
	reg.Register(TagCropAnalysisSync, func(ctx context.Context) error {
		return m.SyncCropAnalysis(ctx, cropEndpoint)
	})
	reg.Register(TagWeatherSync, func(ctx context.Context) error {
		return m.SyncWeather(ctx, weatherEndpoint, weatherCache)
	})
}

// SyncCropAnalysis drains every offline-data entry whose key matches the
// crop-analysis path: each stored body is POSTed as JSON to the remote
// endpoint and deleted on success. A failure for one entry is logged and does
// not abort the rest.
func (m *Manager) SyncCropAnalysis(ctx context.Context, endpoint string) error {
	var errs error

	for _, key := range m.storage.PartitionKeys(OfflineDataPartition) {
		if !strings.Contains(key, cropAnalysisKeyFragment) {
			continue
		}

		entry, ok := m.storage.PartitionGet(OfflineDataPartition, key)
		if !ok {
			continue
		}

		if err := m.postJSON(ctx, endpoint, entry.Body); err != nil {
			m.log.Warn("crop analysis sync failed for entry",
				zap.String("key", key),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("entry %s: %w", key, err))
			continue
		}

		m.storage.PartitionDelete(OfflineDataPartition, key)
		m.log.Info("crop analysis entry synced", zap.String("key", key))
	}

	return errs
}

// SyncWeather fetches the latest weather payload from the remote endpoint and
// overwrites the corresponding entry in the current generation. The payload is
// also written through the durable response cache so the routed weather
// endpoint can serve it offline; a write-through failure is logged but does
// not fail the sync, since the generation entry was refreshed.
func (m *Manager) SyncWeather(ctx context.Context, endpoint string, cache WeatherCache) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("assetcache: weather sync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assetcache: weather sync: endpoint returned %d", resp.StatusCode)
	}

	stored, err := snapshotResponse(resp)
	if err != nil {
		return fmt.Errorf("assetcache: weather sync: %w", err)
	}

	m.storage.Store(WeatherAssetPath, stored)

	if cache != nil {
		if err := cache.CacheWeather(ctx, json.RawMessage(stored.Body)); err != nil {
			m.log.Warn("weather write-through to response cache failed", zap.Error(err))
		}
	}

	m.log.Info("weather cache refreshed", zap.String("path", WeatherAssetPath))
	return nil
}

func (m *Manager) postJSON(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
