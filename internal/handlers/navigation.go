package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kisansathi/gateway/internal/store"
	apperrors "github.com/kisansathi/gateway/pkg/errors"
	"github.com/kisansathi/gateway/pkg/response"
	"github.com/kisansathi/gateway/pkg/validator"
)

// NavigationHandler persists the last page a farmer visited so the app can
// restore it on the next launch.
type NavigationHandler struct {
	store *store.Store
}

// NewNavigationHandler constructs a navigation state handler.
func NewNavigationHandler(st *store.Store) (*NavigationHandler, error) {
	if st == nil {
		return nil, errors.New("handlers: store is required")
	}
	return &NavigationHandler{store: st}, nil
}

type saveNavigationInput struct {
	Path string `json:"path" validate:"required"`
}

// Save records the last visited page.
func (h *NavigationHandler) Save(c *gin.Context) {
	var input saveNavigationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request payload"))
		return
	}
	if err := validator.ValidateStruct(input); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	if err := h.store.SaveNavigationState(c.Request.Context(), input.Path); err != nil {
		response.Error(c, apperrors.ErrStorage.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"path": input.Path})
}

// Last returns the most recently visited page, falling back to the root path
// when the stored state is missing or expired.
func (h *NavigationHandler) Last(c *gin.Context) {
	path, err := h.store.LastVisitedPage(c.Request.Context())
	if err != nil {
		response.Error(c, apperrors.ErrStorage.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"path": path})
}
