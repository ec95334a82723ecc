package store

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/kisansathi/gateway/internal/models"
)

// Fixed cache keys and ttls used by the typed helpers.
const (
	MarketPricesKey = "market-prices"
	WeatherKey      = "weather"
	NavigationKey   = "last-visited-page"

	MarketPricesTTL = 2 * time.Hour
	NavigationTTL   = 24 * time.Hour
)

// SaveCropAnalysis queues a crop analysis captured while offline.
func (s *Store) SaveCropAnalysis(ctx context.Context, payload any) (string, error) {
	return s.SaveOfflineData(ctx, models.CategoryCropAnalysis, payload)
}

// SaveWeatherData queues a weather observation captured while offline.
func (s *Store) SaveWeatherData(ctx context.Context, payload any) (string, error) {
	return s.SaveOfflineData(ctx, models.CategoryWeatherData, payload)
}

// SaveVoiceQuery queues a voice query captured while offline.
func (s *Store) SaveVoiceQuery(ctx context.Context, payload any) (string, error) {
	return s.SaveOfflineData(ctx, models.CategoryVoiceQuery, payload)
}

// CacheMarketPrices stores the latest market prices with the fixed 2h ttl.
func (s *Store) CacheMarketPrices(ctx context.Context, prices any) error {
	return s.CacheResponse(ctx, MarketPricesKey, prices, MarketPricesTTL)
}

// CachedMarketPrices returns the cached market prices if still fresh.
func (s *Store) CachedMarketPrices(ctx context.Context) (datatypes.JSON, bool, error) {
	return s.GetCachedResponse(ctx, MarketPricesKey)
}

// CacheWeather stores the latest weather payload with the default ttl.
func (s *Store) CacheWeather(ctx context.Context, weather any) error {
	return s.CacheResponse(ctx, WeatherKey, weather, 0)
}

// CachedWeather returns the cached weather payload if still fresh.
func (s *Store) CachedWeather(ctx context.Context) (datatypes.JSON, bool, error) {
	return s.GetCachedResponse(ctx, WeatherKey)
}

// SaveNavigationState remembers the last visited page for 24 hours.
func (s *Store) SaveNavigationState(ctx context.Context, page string) error {
	return s.CacheResponse(ctx, NavigationKey, map[string]string{"page": page}, NavigationTTL)
}

// LastVisitedPage returns the remembered page, or "/" when nothing fresh is
// stored.
func (s *Store) LastVisitedPage(ctx context.Context) (string, error) {
	payload, ok, err := s.GetCachedResponse(ctx, NavigationKey)
	if err != nil {
		return "/", err
	}
	if !ok {
		return "/", nil
	}

	var state struct {
		Page string `json:"page"`
	}
	if err := json.Unmarshal(payload, &state); err != nil || state.Page == "" {
		return "/", nil
	}
	return state.Page, nil
}
