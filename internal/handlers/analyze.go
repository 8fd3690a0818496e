package handlers

import (
	"encoding/base64"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/clients/inference"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/gcp"
	"github.com/radview/radview-backend/internal/platform/logger"
	"github.com/radview/radview-backend/internal/repos"
	"github.com/radview/radview-backend/internal/services"
)

// Payloads up to this size are inlined as base64; larger ones are handed to
// the sidecar as a signed URL it fetches itself.
const inlineAnalyzeLimit = 4 << 20

type AnalyzeHandler struct {
	log             *logger.Logger
	instanceRepo    repos.InstanceRepo
	accessService   services.AccessService
	store           gcp.ObjectStore
	inferenceClient inference.Client
}

func NewAnalyzeHandler(
	baseLog *logger.Logger,
	instanceRepo repos.InstanceRepo,
	accessService services.AccessService,
	store gcp.ObjectStore,
	inferenceClient inference.Client,
) *AnalyzeHandler {
	return &AnalyzeHandler{
		log:             baseLog.With("handler", "AnalyzeHandler"),
		instanceRepo:    instanceRepo,
		accessService:   accessService,
		store:           store,
		inferenceClient: inferenceClient,
	}
}

type analyzeRequest struct {
	Prompt string `json:"prompt"`
}

// POST /api/instances/:id/analyze
// The engine forwards the stored bytes (inline or via signed URL) and the
// caller's prompt; the returned text is passed through unmodified.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	if h.inferenceClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "inference service not configured"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid instance id"})
		return
	}
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
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

	input := ""
	if row.FileSizeBytes > 0 && row.FileSizeBytes <= inlineAnalyzeLimit {
		rc, err := h.store.Download(c.Request.Context(), gcp.BucketCategoryImage, row.FilePath)
		if err == nil {
			raw, readErr := io.ReadAll(io.LimitReader(rc, inlineAnalyzeLimit+1))
			_ = rc.Close()
			if readErr == nil && len(raw) <= inlineAnalyzeLimit {
				input = base64.StdEncoding.EncodeToString(raw)
			}
		}
	}
	if input == "" {
		u, err := h.accessService.SignedAssetURL(c.Request.Context(), row.FilePath, 15*time.Minute)
		if err != nil || u == "" {
			h.log.Error("could not produce analyzable payload", "instance_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "asset unavailable"})
			return
		}
		input = u
	}

	resp, err := h.inferenceClient.Analyze(c.Request.Context(), inference.AnalyzeRequest{
		Input:   input,
		Type:    inference.TaskTypeImageAnalysis,
		Context: body.Prompt,
	})
	if err != nil {
		h.log.Error("inference call failed", "instance_id", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis":        resp.Result,
		"model":           resp.Model,
		"processing_time": resp.ProcessingTime,
	})
}
