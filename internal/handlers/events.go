package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/middleware"
	"github.com/radview/radview-backend/internal/platform/logger"
	"github.com/radview/radview-backend/internal/sse"
)

type EventsHandler struct {
	log *logger.Logger
	hub *sse.Hub
}

func NewEventsHandler(baseLog *logger.Logger, hub *sse.Hub) *EventsHandler {
	return &EventsHandler{
		log: baseLog.With("handler", "EventsHandler"),
		hub: hub,
	}
}

// GET /api/events?channels=upload:<batch-id>,...
func (h *EventsHandler) Stream(c *gin.Context) {
	userID := uuid.Nil
	if v, ok := c.Get(middleware.ContextKeyUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			userID = id
		}
	}

	client := h.hub.NewClient(userID)
	for _, ch := range strings.Split(c.Query("channels"), ",") {
		h.hub.AddChannel(client, ch)
	}
	defer h.hub.RemoveClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}

type HealthHandler struct {
	log *logger.Logger
}

func NewHealthHandler(baseLog *logger.Logger) *HealthHandler {
	return &HealthHandler{log: baseLog.With("handler", "HealthHandler")}
}

// GET /healthz
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
