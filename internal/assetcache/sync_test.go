package assetcache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/kisansathi/gateway/pkg/errors"
)

func TestRegistryTriggersRegisteredHandler(t *testing.T) {
	reg := NewRegistry()

	var fired bool
	reg.Register("weather-sync", func(context.Context) error {
		fired = true
		return nil
	})

	require.NoError(t, reg.Trigger(context.Background(), "weather-sync"))
	require.True(t, fired)
	require.Equal(t, []string{"weather-sync"}, reg.Tags())
}

func TestRegistryUnknownTag(t *testing.T) {
	reg := NewRegistry()
	err := reg.Trigger(context.Background(), "unknown-sync")
	require.ErrorIs(t, err, apperrors.ErrUnknownSyncTag)
}

func TestSyncCropAnalysisDrainsMatchingEntries(t *testing.T) {
	var mu sync.Mutex
	received := make([]map[string]int, 0)

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	origin, _ := newTestOrigin(t)
	m := newTestManager(t, origin.URL, "v1")

	m.QueueOfflinePayload("/api/crop-analysis/one", []byte(`{"cropId":1}`))
	m.QueueOfflinePayload("/api/crop-analysis/two", []byte(`{"cropId":2}`))
	m.QueueOfflinePayload("/api/voice-query/keep", []byte(`{"q":1}`))

	require.NoError(t, m.SyncCropAnalysis(context.Background(), endpoint.URL))

	require.Len(t, received, 2)
	require.Equal(t, []string{"/api/voice-query/keep"}, m.Storage().PartitionKeys(OfflineDataPartition))
}

func TestSyncCropAnalysisIsolatesEntryFailures(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]int
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["cropId"] == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	origin, _ := newTestOrigin(t)
	m := newTestManager(t, origin.URL, "v1")

	m.QueueOfflinePayload("/api/crop-analysis/bad", []byte(`{"cropId":1}`))
	m.QueueOfflinePayload("/api/crop-analysis/good", []byte(`{"cropId":2}`))

	err := m.SyncCropAnalysis(context.Background(), endpoint.URL)
	require.Error(t, err)

	// The failed entry stays queued for the next trigger; the good one is gone.
	require.Equal(t, []string{"/api/crop-analysis/bad"}, m.Storage().PartitionKeys(OfflineDataPartition))
}

func TestSyncWeatherOverwritesGenerationEntry(t *testing.T) {
	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tempC":31,"humidity":68}`))
	}))
	defer weather.Close()

	origin, _ := newTestOrigin(t)
	m := newTestManager(t, origin.URL, "v1")
	require.NoError(t, m.Activate(context.Background()))

	require.NoError(t, m.SyncWeather(context.Background(), weather.URL, nil))

	stored, ok := m.Storage().Lookup(WeatherAssetPath)
	require.True(t, ok)
	require.JSONEq(t, `{"tempC":31,"humidity":68}`, string(stored.Body))
}

type weatherCacheFunc func(ctx context.Context, weather any) error

func (f weatherCacheFunc) CacheWeather(ctx context.Context, weather any) error {
	return f(ctx, weather)
}

func TestSyncWeatherWritesThroughResponseCache(t *testing.T) {
	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tempC":29}`))
	}))
	defer weather.Close()

	origin, _ := newTestOrigin(t)
	m := newTestManager(t, origin.URL, "v1")
	require.NoError(t, m.Activate(context.Background()))

	var cached []byte
	cache := weatherCacheFunc(func(_ context.Context, weather any) error {
		raw, ok := weather.(json.RawMessage)
		require.True(t, ok)
		cached = raw
		return nil
	})

	require.NoError(t, m.SyncWeather(context.Background(), weather.URL, cache))
	require.JSONEq(t, `{"tempC":29}`, string(cached))
}

func TestSyncWeatherSucceedsWhenWriteThroughFails(t *testing.T) {
	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tempC":27}`))
	}))
	defer weather.Close()

	origin, _ := newTestOrigin(t)
	m := newTestManager(t, origin.URL, "v1")
	require.NoError(t, m.Activate(context.Background()))

	cache := weatherCacheFunc(func(context.Context, any) error {
		return errors.New("response cache unavailable")
	})

	// The generation entry was refreshed, so the sync reports success.
	require.NoError(t, m.SyncWeather(context.Background(), weather.URL, cache))

	stored, ok := m.Storage().Lookup(WeatherAssetPath)
	require.True(t, ok)
	require.JSONEq(t, `{"tempC":27}`, string(stored.Body))
}

func TestRegisterSyncHandlersBindsBothTags(t *testing.T) {
	origin, _ := newTestOrigin(t)
	m := newTestManager(t, origin.URL, "v1")

	reg := NewRegistry()
	m.RegisterSyncHandlers(reg, "http://sync.local/api/crop-analysis", "http://sync.local/api/weather", nil)

	require.Equal(t, []string{TagCropAnalysisSync, TagWeatherSync}, reg.Tags())
}
