package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/service"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
	"github.com/attendfi/attendfi-api/pkg/response"
)

type eventService interface {
	CreateEvent(ctx context.Context, organizer string, req service.CreateEventRequest) (*service.EventView, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error)
	Get(ctx context.Context, eventID int64, viewer string) (*service.EventView, error)
	GetSession(ctx context.Context, eventID int64, index int, viewer string) (*models.SessionView, error)
}

// EventHandler exposes event publication and read endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler builds a new handler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// Create godoc
// @Summary Publish an event with its session schedule
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	view, err := h.service.CreateEvent(c.Request.Context(), callerAddress(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param organizer query string false "Organizer address filter"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	filter := models.EventFilter{
		OrganizerAddress: c.Query("organizer"),
		Page:             page,
		PageSize:         pageSize,
		SortBy:           c.Query("sortBy"),
		SortOrder:        c.Query("sortOrder"),
	}
	events, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get an event with its schedule
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	eventID, err := parseEventID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.Get(c.Request.Context(), eventID, callerAddress(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// GetSession godoc
// @Summary Get one session of an event
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Param index path int true "Session index"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/sessions/{index} [get]
func (h *EventHandler) GetSession(c *gin.Context) {
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
	view, err := h.service.GetSession(c.Request.Context(), eventID, index, callerAddress(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
