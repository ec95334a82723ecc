package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kisansathi/gateway/internal/store"
	apperrors "github.com/kisansathi/gateway/pkg/errors"
	"github.com/kisansathi/gateway/pkg/logger"
	"github.com/kisansathi/gateway/pkg/response"
)

// PricesHandler serves mandi price data through the expirable response cache.
type PricesHandler struct {
	store    *store.Store
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewPricesHandler constructs a market prices handler.
func NewPricesHandler(st *store.Store, endpoint string) (*PricesHandler, error) {
	if st == nil {
		return nil, errors.New("handlers: store is required")
	}
	if endpoint == "" {
		return nil, errors.New("handlers: prices endpoint is required")
	}
	return &PricesHandler{
		store:    st,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      logger.WithModule("handlers.prices"),
	}, nil
}

// Get returns cached market prices, refreshing them from the upstream
// service on a cache miss.
func (h *PricesHandler) Get(c *gin.Context) {
	cached, ok, err := h.store.CachedMarketPrices(c.Request.Context())
	if err != nil {
		response.Error(c, apperrors.ErrStorage.WithInternal(err))
		return
	}
	if ok {
		response.Success(c, http.StatusOK, gin.H{"prices": json.RawMessage(cached), "cached": true})
		return
	}

	fresh, err := fetchJSON(c, h.client, h.endpoint)
	if err != nil {
		h.log.Warn("prices upstream unavailable", zap.Error(err))
		response.Error(c, apperrors.ErrUpstreamUnavailable.WithInternal(err))
		return
	}

	if err := h.store.CacheMarketPrices(c.Request.Context(), json.RawMessage(fresh)); err != nil {
		h.log.Warn("failed to cache prices response", zap.Error(err))
	}
	response.Success(c, http.StatusOK, gin.H{"prices": json.RawMessage(fresh), "cached": false})
}
