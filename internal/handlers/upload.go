package handlers

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/logger"
	"github.com/radview/radview-backend/internal/services"
	"github.com/radview/radview-backend/internal/sse"
)

type UploadHandler struct {
	log           *logger.Logger
	uploadService services.UploadService
	hub           *sse.Hub
}

func NewUploadHandler(baseLog *logger.Logger, uploadService services.UploadService, hub *sse.Hub) *UploadHandler {
	return &UploadHandler{
		log:           baseLog.With("handler", "UploadHandler"),
		uploadService: uploadService,
		hub:           hub,
	}
}

type uploadResponse struct {
	BatchID string                  `json:"batch_id"`
	Results []services.UploadResult `json:"results"`
}

// POST /api/uploads
// Multipart batch upload. Shared hierarchy fields come from the form; the
// SOP instance UID is taken per file from "sop_uids" (parallel to "files")
// or falls back to the filename stem.
func (h *UploadHandler) UploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	field := func(name string) string { return strings.TrimSpace(c.PostForm(name)) }
	sopUIDs := form.Value["sop_uids"]

	inputs := make([]services.UploadInput, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file " + fh.Filename})
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file " + fh.Filename})
			return
		}

		sopUID := ""
		if i < len(sopUIDs) {
			sopUID = strings.TrimSpace(sopUIDs[i])
		}
		if sopUID == "" {
			sopUID = strings.TrimSuffix(fh.Filename, path.Ext(fh.Filename))
		}

		inputs = append(inputs, services.UploadInput{
			FileName:          fh.Filename,
			ContentType:       fh.Header.Get("Content-Type"),
			Data:              data,
			PatientID:         field("patient_id"),
			PatientName:       field("patient_name"),
			Institution:       field("institution"),
			StudyUID:          field("study_uid"),
			StudyDescription:  field("study_description"),
			StudyDate:         field("study_date"),
			SeriesUID:         field("series_uid"),
			Modality:          field("modality"),
			BodyPart:          field("body_part"),
			SeriesDescription: field("series_description"),
			SOPUID:            sopUID,
		})
	}

	batchID := uuid.New()
	channel := sse.BatchChannel(batchID)

	onProgress := func(fileIndex, fileCount int, stage services.UploadStage, filePct, overallPct int) {
		h.hub.Broadcast(sse.Message{
			Channel: channel,
			Event:   sse.EventUploadFileProgress,
			Data: gin.H{
				"file_index":      fileIndex,
				"file_count":      fileCount,
				"stage":           stage,
				"file_percent":    filePct,
				"overall_percent": overallPct,
			},
		})
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	results := h.uploadService.UploadBatch(dbc, inputs, onProgress)

	for i, res := range results {
		h.hub.Broadcast(sse.Message{
			Channel: channel,
			Event:   sse.EventUploadFileDone,
			Data: gin.H{
				"file_index":  i,
				"success":     res.Success,
				"canceled":    res.Canceled,
				"instance_id": res.InstanceID,
				"error":       res.Error,
			},
		})
	}

	h.hub.Broadcast(sse.Message{
		Channel: channel,
		Event:   sse.EventUploadBatchDone,
		Data:    gin.H{"batch_id": batchID, "file_count": len(results)},
	})

	c.JSON(http.StatusOK, uploadResponse{BatchID: batchID.String(), Results: results})
}
