package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/envutil"
	"github.com/radview/radview-backend/internal/platform/logger"
	"github.com/radview/radview-backend/internal/repos"
	"github.com/radview/radview-backend/internal/services"
	"github.com/radview/radview-backend/internal/sse"
)

type InstanceHandler struct {
	log             *logger.Logger
	instanceRepo    repos.InstanceRepo
	accessService   services.AccessService
	deletionService services.DeletionService
	hub             *sse.Hub
}

func NewInstanceHandler(
	baseLog *logger.Logger,
	instanceRepo repos.InstanceRepo,
	accessService services.AccessService,
	deletionService services.DeletionService,
	hub *sse.Hub,
) *InstanceHandler {
	return &InstanceHandler{
		log:             baseLog.With("handler", "InstanceHandler"),
		instanceRepo:    instanceRepo,
		accessService:   accessService,
		deletionService: deletionService,
		hub:             hub,
	}
}

// GET /api/instances/:id/url?kind=asset|thumbnail&ttl=3600
// Responds {"url": null} rather than 404 when the object is gone so viewers
// can render a "no preview" state.
func (h *InstanceHandler) SignedURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid instance id"})
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	row, err := h.instanceRepo.GetByID(dbc, id)
	if err != nil {
		h.log.Error("instance lookup failed", "instance_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		return
	}

	ttl := time.Duration(envutil.Int("SIGNED_URL_TTL_SECONDS", 3600)) * time.Second
	if q := c.Query("ttl"); q != "" {
		if d, err := time.ParseDuration(q + "s"); err == nil && d > 0 {
			ttl = d
		}
	}

	var u string
	switch c.DefaultQuery("kind", "asset") {
	case "thumbnail":
		if row.ThumbnailPath == nil {
			c.JSON(http.StatusOK, gin.H{"url": nil})
			return
		}
		u, err = h.accessService.SignedThumbnailURL(c.Request.Context(), *row.ThumbnailPath, ttl)
	case "asset":
		u, err = h.accessService.SignedAssetURL(c.Request.Context(), row.FilePath, ttl)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be asset or thumbnail"})
		return
	}
	if err != nil {
		h.log.Error("signed URL issue failed", "instance_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign URL"})
		return
	}
	if u == "" {
		c.JSON(http.StatusOK, gin.H{"url": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u, "expires_in": int(ttl.Seconds())})
}

// DELETE /api/instances/:id
func (h *InstanceHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid instance id"})
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	deleted, err := h.deletionService.Delete(dbc, id)
	if err != nil {
		apiErr := toAPIError(err)
		h.log.Error("instance delete failed", "instance_id", id, "code", apiErr.Code, "error", err)
		c.JSON(apiErr.Status, gin.H{"deleted": false, "error": apiErr.Code})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"deleted": false, "error": "instance not found"})
		return
	}

	h.hub.Broadcast(sse.Message{
		Channel: sse.ChannelInstances,
		Event:   sse.EventInstanceDeleted,
		Data:    gin.H{"instance_id": id},
	})
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
