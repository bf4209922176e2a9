package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, eventID int64, address string) (*models.Participant, error)
	GetParticipant(ctx context.Context, eventID int64, address string) (*models.ParticipantDetail, error)
	ListEnrollments(ctx context.Context, address string) ([]models.Participant, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler builds a new handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Enroll godoc
// @Summary Enroll in an event, paying price plus commitment stake
// @Tags Enrollments
// @Produce json
// @Param id path int true "Event ID"
// @Success 201 {object} response.Envelope
// @Router /events/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	eventID, err := parseEventID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	participant, err := h.service.Enroll(c.Request.Context(), eventID, callerAddress(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, participant)
}

// GetParticipant godoc
// @Summary Get one participant of an event with attendance proofs
// @Tags Enrollments
// @Produce json
// @Param id path int true "Event ID"
// @Param address path string true "Participant address"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/participants/{address} [get]
func (h *EnrollmentHandler) GetParticipant(c *gin.Context) {
	eventID, err := parseEventID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.GetParticipant(c.Request.Context(), eventID, c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ListMine godoc
// @Summary List the caller's enrollments across events
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	enrollments, err := h.service.ListEnrollments(c.Request.Context(), callerAddress(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}
