package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kisansathi/gateway/internal/assetcache"
	"github.com/kisansathi/gateway/internal/store"
	apperrors "github.com/kisansathi/gateway/pkg/errors"
	"github.com/kisansathi/gateway/pkg/logger"
	"github.com/kisansathi/gateway/pkg/response"
)

// CropAnalysisHandler forwards crop analysis submissions upstream and queues
// them for background sync when the upstream is unreachable.
type CropAnalysisHandler struct {
	store    *store.Store
	manager  *assetcache.Manager
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewCropAnalysisHandler constructs a crop analysis handler.
func NewCropAnalysisHandler(st *store.Store, manager *assetcache.Manager, endpoint string) (*CropAnalysisHandler, error) {
	if st == nil {
		return nil, errors.New("handlers: store is required")
	}
	if manager == nil {
		return nil, errors.New("handlers: asset cache manager is required")
	}
	if endpoint == "" {
		return nil, errors.New("handlers: crop analysis endpoint is required")
	}
	return &CropAnalysisHandler{
		store:    st,
		manager:  manager,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      logger.WithModule("handlers.crop_analysis"),
	}, nil
}

// Submit forwards the analysis payload to the upstream service. When the
// upstream cannot be reached the payload is saved as pending offline data and
// queued for the next crop-analysis sync, and the client gets a 202.
func (h *CropAnalysisHandler) Submit(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil || len(body) == 0 {
		response.Error(c, apperrors.NewBadRequest("request body is required"))
		return
	}
	if !json.Valid(body) {
		response.Error(c, apperrors.NewBadRequest("request body must be valid JSON"))
		return
	}

	upstream, upstreamErr := h.forward(c, body)
	if upstreamErr == nil {
		defer upstream.Body.Close()
		result, readErr := io.ReadAll(io.LimitReader(upstream.Body, 1<<20))
		if readErr == nil && upstream.StatusCode < 500 {
			c.Data(upstream.StatusCode, "application/json", result)
			return
		}
	}

	id, err := h.store.SaveCropAnalysis(c.Request.Context(), json.RawMessage(body))
	if err != nil {
		response.Error(c, apperrors.ErrStorage.WithInternal(err))
		return
	}
	h.manager.QueueOfflinePayload(fmt.Sprintf("/api/crop-analysis/%s", id), body)

	h.log.Info("crop analysis queued for sync",
		zap.String("id", id),
		zap.NamedError("upstream_error", upstreamErr),
	)
	response.Success(c, http.StatusAccepted, gin.H{"queued": true, "id": id})
}

func (h *CropAnalysisHandler) forward(c *gin.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return h.client.Do(req)
}
