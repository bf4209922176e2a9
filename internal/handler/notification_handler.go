package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/attendfi/attendfi-api/internal/notifier"
)

// NotificationHandler upgrades clients onto the settlement notification stream.
type NotificationHandler struct {
	hub      *notifier.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewNotificationHandler builds a new handler.
func NewNotificationHandler(hub *notifier.Hub, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Tokens gate the REST surface; the stream carries only
			// public settlement facts.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Stream godoc
// @Summary Subscribe to settlement notifications over websocket
// @Tags Notifications
// @Router /notifications/stream [get]
func (h *NotificationHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.Serve(conn)
}
