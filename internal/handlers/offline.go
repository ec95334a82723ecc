package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kisansathi/gateway/internal/models"
	"github.com/kisansathi/gateway/internal/store"
	apperrors "github.com/kisansathi/gateway/pkg/errors"
	"github.com/kisansathi/gateway/pkg/response"
	"github.com/kisansathi/gateway/pkg/validator"
)

// OfflineHandler exposes the pending offline-data records.
type OfflineHandler struct {
	store *store.Store
}

// NewOfflineHandler constructs an offline data handler.
func NewOfflineHandler(st *store.Store) (*OfflineHandler, error) {
	if st == nil {
		return nil, errors.New("handlers: store is required")
	}
	return &OfflineHandler{store: st}, nil
}

type saveOfflineInput struct {
	Category string          `json:"category" validate:"required"`
	Payload  json.RawMessage `json:"payload" validate:"required"`
}

// Save persists a pending record for later synchronisation.
func (h *OfflineHandler) Save(c *gin.Context) {
	var input saveOfflineInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request payload"))
		return
	}
	if err := validator.ValidateStruct(input); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	id, err := h.store.SaveOfflineData(c.Request.Context(), models.Category(input.Category), input.Payload)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCategory) {
			response.Error(c, apperrors.NewBadRequest("unknown category "+input.Category))
			return
		}
		response.Error(c, apperrors.ErrStorage.WithInternal(err))
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"id": id})
}

// List returns pending records, optionally filtered by category.
func (h *OfflineHandler) List(c *gin.Context) {
	category := models.Category(strings.TrimSpace(c.Query("category")))
	if category != "" && !category.Valid() {
		response.Error(c, apperrors.NewBadRequest("unknown category "+string(category)))
		return
	}

	records, err := h.store.GetOfflineData(c.Request.Context(), category)
	if err != nil {
		response.Error(c, apperrors.ErrStorage.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// MarkSynced flags a pending record as synchronised. Unknown IDs are treated
// as already synced.
func (h *OfflineHandler) MarkSynced(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, apperrors.NewBadRequest("record id is required"))
		return
	}

	if err := h.store.MarkSynced(c.Request.Context(), id); err != nil {
		response.Error(c, apperrors.ErrStorage.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id, "synced": true})
}
