package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/service"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
	"github.com/attendfi/attendfi-api/pkg/response"
)

type protocolService interface {
	ProtocolState(ctx context.Context) (*models.ProtocolState, error)
	SetMaxSessions(ctx context.Context, max int) (*models.ProtocolState, error)
}

type maxSessionsRequest struct {
	MaxSessions int `json:"max_sessions" binding:"required,min=1"`
}

// ProtocolHandler exposes protocol-level state and administration.
type ProtocolHandler struct {
	service protocolService
	metrics *service.MetricsService
}

// NewProtocolHandler builds a new handler. metrics may be nil.
func NewProtocolHandler(svc protocolService, metrics *service.MetricsService) *ProtocolHandler {
	return &ProtocolHandler{service: svc, metrics: metrics}
}

// State godoc
// @Summary Get protocol TVL and session cap
// @Tags Protocol
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /protocol [get]
func (h *ProtocolHandler) State(c *gin.Context) {
	state, err := h.service.ProtocolState(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.SetProtocolTVL(state.TVL)
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// SetMaxSessions godoc
// @Summary Update the per-event session cap (admin only)
// @Tags Protocol
// @Accept json
// @Produce json
// @Param payload body maxSessionsRequest true "New cap"
// @Success 200 {object} response.Envelope
// @Router /protocol/max-sessions [put]
func (h *ProtocolHandler) SetMaxSessions(c *gin.Context) {
	var req maxSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cap payload"))
		return
	}
	state, err := h.service.SetMaxSessions(c.Request.Context(), req.MaxSessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}
