package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kisansathi/gateway/internal/assetcache"
	"github.com/kisansathi/gateway/internal/store"
	apperrors "github.com/kisansathi/gateway/pkg/errors"
	"github.com/kisansathi/gateway/pkg/logger"
	"github.com/kisansathi/gateway/pkg/response"
)

// SyncHandler exposes the connectivity-restoration sync triggers.
type SyncHandler struct {
	store    *store.Store
	registry *assetcache.Registry
	log      *zap.Logger
}

// NewSyncHandler constructs a sync handler.
func NewSyncHandler(st *store.Store, registry *assetcache.Registry) (*SyncHandler, error) {
	if st == nil {
		return nil, errors.New("handlers: store is required")
	}
	if registry == nil {
		return nil, errors.New("handlers: sync registry is required")
	}
	return &SyncHandler{store: st, registry: registry, log: logger.WithModule("handlers.sync")}, nil
}

// Drain pushes all pending offline records to the remote sync endpoint.
// Partial failures still report per-category stats; failed records stay
// pending for the next attempt.
func (h *SyncHandler) Drain(c *gin.Context) {
	stats, err := h.store.SyncPendingData(c.Request.Context())
	if err != nil {
		h.log.Warn("sync drain completed with failures",
			zap.Int("attempted", stats.Attempted),
			zap.Int("synced", stats.Synced),
			zap.Int("failed", stats.Failed),
			zap.Error(err),
		)
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempted": stats.Attempted,
		"synced":    stats.Synced,
		"failed":    stats.Failed,
	})
}

// Trigger fires a named background sync tag.
func (h *SyncHandler) Trigger(c *gin.Context) {
	tag := strings.TrimSpace(c.Param("tag"))

	if err := h.registry.Trigger(c.Request.Context(), tag); err != nil {
		if errors.Is(err, apperrors.ErrUnknownSyncTag) {
			response.Error(c, apperrors.ErrUnknownSyncTag)
			return
		}
		h.log.Warn("sync trigger failed", zap.String("tag", tag), zap.Error(err))
		response.Error(c, apperrors.ErrUpstreamUnavailable.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tag": tag, "completed": true})
}

// Tags lists the registered sync tags.
func (h *SyncHandler) Tags(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"tags": h.registry.Tags()})
}
