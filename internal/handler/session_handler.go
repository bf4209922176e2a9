package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attendfi/attendfi-api/internal/models"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
	"github.com/attendfi/attendfi-api/pkg/response"
)

type sessionService interface {
	SetSessionCode(ctx context.Context, eventID int64, index int, caller, code string) (*models.SessionView, error)
}

type attendanceService interface {
	Attend(ctx context.Context, eventID int64, index int, address, code string) (*models.Attendance, error)
}

// codeRequest carries the attendance code for both issuance and proof.
type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

// SessionHandler exposes session-code issuance and attendance endpoints.
type SessionHandler struct {
	sessions   sessionService
	attendance attendanceService
}

// NewSessionHandler builds a new handler.
func NewSessionHandler(sessions sessionService, attendance attendanceService) *SessionHandler {
	return &SessionHandler{sessions: sessions, attendance: attendance}
}

// SetCode godoc
// @Summary Issue the attendance code for a session (organizer only)
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param index path int true "Session index"
// @Param payload body codeRequest true "Attendance code"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/sessions/{index}/code [post]
func (h *SessionHandler) SetCode(c *gin.Context) {
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
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid code payload"))
		return
	}
	view, err := h.sessions.SetSessionCode(c.Request.Context(), eventID, index, callerAddress(c), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Attend godoc
// @Summary Present the session code and settle the attendance reward
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param index path int true "Session index"
// @Param payload body codeRequest true "Attendance code"
// @Success 201 {object} response.Envelope
// @Router /events/{id}/sessions/{index}/attend [post]
func (h *SessionHandler) Attend(c *gin.Context) {
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
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid code payload"))
		return
	}
	proof, err := h.attendance.Attend(c.Request.Context(), eventID, index, callerAddress(c), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, proof)
}
