package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attendfi/attendfi-api/internal/service"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
	"github.com/attendfi/attendfi-api/pkg/response"
)

type statementService interface {
	EventStatement(ctx context.Context, eventID int64, caller string, format service.StatementFormat) (*service.Statement, error)
	StatementLink(ctx context.Context, eventID int64, caller string, format service.StatementFormat) (*service.StatementLink, error)
	StatementByToken(token string) (*service.Statement, error)
}

// StatementHandler exposes downloadable settlement statements.
type StatementHandler struct {
	service statementService
}

// NewStatementHandler builds a new handler.
func NewStatementHandler(service statementService) *StatementHandler {
	return &StatementHandler{service: service}
}

// Download godoc
// @Summary Download the settlement statement of an event (organizer only)
// @Tags Statements
// @Produce octet-stream
// @Param id path int true "Event ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /events/{id}/statement [get]
func (h *StatementHandler) Download(c *gin.Context) {
	eventID, err := parseEventID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.StatementFormat(c.DefaultQuery("format", string(service.StatementCSV)))
	statement, err := h.service.EventStatement(c.Request.Context(), eventID, callerAddress(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", statement.Filename))
	c.Data(http.StatusOK, statement.ContentType, statement.Payload)
}

// Link godoc
// @Summary Create an expiring download link for a statement (organizer only)
// @Tags Statements
// @Produce json
// @Param id path int true "Event ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Router /events/{id}/statement-link [post]
func (h *StatementHandler) Link(c *gin.Context) {
	eventID, err := parseEventID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.StatementFormat(c.DefaultQuery("format", string(service.StatementCSV)))
	link, err := h.service.StatementLink(c.Request.Context(), eventID, callerAddress(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// DownloadSigned godoc
// @Summary Download an archived statement via a signed token
// @Tags Statements
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /statements/download [get]
func (h *StatementHandler) DownloadSigned(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token query parameter is required"))
		return
	}
	statement, err := h.service.StatementByToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", statement.Filename))
	c.Data(http.StatusOK, statement.ContentType, statement.Payload)
}
