package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kisansathi/gateway/internal/ai"
	apperrors "github.com/kisansathi/gateway/pkg/errors"
	"github.com/kisansathi/gateway/pkg/logger"
	"github.com/kisansathi/gateway/pkg/response"
	"github.com/kisansathi/gateway/pkg/validator"
)

// AIHandler exposes the advisory question endpoint.
type AIHandler struct {
	client *ai.Client
	log    *zap.Logger
}

// NewAIHandler constructs an AI handler.
func NewAIHandler(client *ai.Client) (*AIHandler, error) {
	if client == nil {
		return nil, errors.New("handlers: ai client is required")
	}
	return &AIHandler{client: client, log: logger.WithModule("handlers.ai")}, nil
}

// Ask answers a farmer's question through the upstream model.
func (h *AIHandler) Ask(c *gin.Context) {
	var req ai.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request payload"))
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	answer, err := h.client.Ask(c.Request.Context(), req)
	if err != nil {
		h.log.Error("advisory request failed", zap.Error(err))
		response.Error(c, apperrors.ErrUpstreamUnavailable.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, answer)
}
