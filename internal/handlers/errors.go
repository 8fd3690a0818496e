package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/radview/radview-backend/internal/platform/apierr"
	"github.com/radview/radview-backend/internal/services"
)

// toAPIError maps the engine's error taxonomy onto transport status and a
// stable machine-readable code.
func toAPIError(err error) *apierr.Error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return apierr.New(http.StatusBadRequest, "validation_failed", err)
	case errors.Is(err, services.ErrUploadTransport):
		return apierr.New(http.StatusBadGateway, "asset_upload_failed", err)
	case errors.Is(err, services.ErrEntityResolution):
		return apierr.New(http.StatusInternalServerError, "entity_resolution_failed", err)
	case errors.Is(err, services.ErrMetadataPersistence):
		return apierr.New(http.StatusInternalServerError, "metadata_write_failed", err)
	case errors.Is(err, services.ErrObjectUndeleted):
		return apierr.New(http.StatusInternalServerError, "object_undeleted", err)
	case errors.Is(err, services.ErrMetadataUndeleted):
		return apierr.New(http.StatusInternalServerError, "metadata_undeleted", err)
	default:
		return apierr.New(http.StatusInternalServerError, "internal_error", err)
	}
}

func respondError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	c.JSON(apiErr.Status, gin.H{"error": apiErr.Code})
}
