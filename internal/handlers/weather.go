package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kisansathi/gateway/internal/store"
	apperrors "github.com/kisansathi/gateway/pkg/errors"
	"github.com/kisansathi/gateway/pkg/logger"
	"github.com/kisansathi/gateway/pkg/response"
)

// WeatherHandler serves weather data through the expirable response cache.
type WeatherHandler struct {
	store    *store.Store
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewWeatherHandler constructs a weather handler.
func NewWeatherHandler(st *store.Store, endpoint string) (*WeatherHandler, error) {
	if st == nil {
		return nil, errors.New("handlers: store is required")
	}
	if endpoint == "" {
		return nil, errors.New("handlers: weather endpoint is required")
	}
	return &WeatherHandler{
		store:    st,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      logger.WithModule("handlers.weather"),
	}, nil
}

// Get returns cached weather data, refreshing it from the upstream service
// on a cache miss.
func (h *WeatherHandler) Get(c *gin.Context) {
	cached, ok, err := h.store.CachedWeather(c.Request.Context())
	if err != nil {
		response.Error(c, apperrors.ErrStorage.WithInternal(err))
		return
	}
	if ok {
		response.Success(c, http.StatusOK, gin.H{"weather": json.RawMessage(cached), "cached": true})
		return
	}

	fresh, err := fetchJSON(c, h.client, h.endpoint)
	if err != nil {
		h.log.Warn("weather upstream unavailable", zap.Error(err))
		response.Error(c, apperrors.ErrUpstreamUnavailable.WithInternal(err))
		return
	}

	if err := h.store.CacheWeather(c.Request.Context(), json.RawMessage(fresh)); err != nil {
		h.log.Warn("failed to cache weather response", zap.Error(err))
	}
	response.Success(c, http.StatusOK, gin.H{"weather": json.RawMessage(fresh), "cached": false})
}

// fetchJSON performs a GET against the endpoint and returns the JSON body.
func fetchJSON(c *gin.Context, client *http.Client, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("upstream returned " + resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.New("upstream returned invalid JSON")
	}
	return body, nil
}
