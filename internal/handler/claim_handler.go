package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/service"
	"github.com/attendfi/attendfi-api/pkg/response"
)

type claimService interface {
	ClaimFirstPortion(ctx context.Context, eventID int64, caller string) (*service.ClaimResult, error)
	ClaimUnattendedFees(ctx context.Context, eventID int64, index int, caller string) (*service.ClaimResult, error)
	OrganizerBalance(ctx context.Context, organizer string, eventID int64) (*models.OrganizerBalance, error)
	OrganizerBalances(ctx context.Context, organizer string) ([]models.OrganizerBalance, error)
}

// ClaimHandler exposes organizer payout endpoints.
type ClaimHandler struct {
	service claimService
}

// NewClaimHandler builds a new handler.
func NewClaimHandler(service claimService) *ClaimHandler {
	return &ClaimHandler{service: service}
}

// ClaimFirstPortion godoc
// @Summary Claim the immediately claimable revenue half (organizer only)
// @Tags Claims
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/claim [post]
func (h *ClaimHandler) ClaimFirstPortion(c *gin.Context) {
	eventID, err := parseEventID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ClaimFirstPortion(c.Request.Context(), eventID, callerAddress(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClaimUnattended godoc
// @Summary Claim the unattended fees of a finished session (organizer only)
// @Tags Claims
// @Produce json
// @Param id path int true "Event ID"
// @Param index path int true "Session index"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/sessions/{index}/claim-unattended [post]
func (h *ClaimHandler) ClaimUnattended(c *gin.Context) {
	eventID, err := parseEventID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	index, err := parseSessionIndex(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ClaimUnattendedFees(c.Request.Context(), eventID, index, callerAddress(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Balance godoc
// @Summary Get the caller's revenue ledger for one event
// @Tags Claims
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/balance [get]
func (h *ClaimHandler) Balance(c *gin.Context) {
	eventID, err := parseEventID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	balance, err := h.service.OrganizerBalance(c.Request.Context(), callerAddress(c), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// Balances godoc
// @Summary List the caller's revenue ledgers across events
// @Tags Claims
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /balances [get]
func (h *ClaimHandler) Balances(c *gin.Context) {
	balances, err := h.service.OrganizerBalances(c.Request.Context(), callerAddress(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balances, nil)
}
