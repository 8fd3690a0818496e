package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/logger"
	"github.com/radview/radview-backend/internal/repos"
)

// HierarchyHandler serves the browse endpoints the viewer walks:
// patients → studies → series → instances.
type HierarchyHandler struct {
	log          *logger.Logger
	patientRepo  repos.PatientRepo
	studyRepo    repos.StudyRepo
	seriesRepo   repos.SeriesRepo
	instanceRepo repos.InstanceRepo
}

func NewHierarchyHandler(
	baseLog *logger.Logger,
	patientRepo repos.PatientRepo,
	studyRepo repos.StudyRepo,
	seriesRepo repos.SeriesRepo,
	instanceRepo repos.InstanceRepo,
) *HierarchyHandler {
	return &HierarchyHandler{
		log:          baseLog.With("handler", "HierarchyHandler"),
		patientRepo:  patientRepo,
		studyRepo:    studyRepo,
		seriesRepo:   seriesRepo,
		instanceRepo: instanceRepo,
	}
}

// GET /api/patients
func (h *HierarchyHandler) ListPatients(c *gin.Context) {
	institution, _ := c.Get("institution")
	inst, _ := institution.(string)

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := h.patientRepo.List(dbc, inst, 200, 0)
	if err != nil {
		h.log.Error("list patients failed", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": rows})
}

// GET /api/patients/:id/studies
func (h *HierarchyHandler) ListStudies(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patient id"})
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := h.studyRepo.ListByPatient(dbc, id)
	if err != nil {
		h.log.Error("list studies failed", "patient_internal_id", id, "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": rows})
}

// GET /api/studies/:id/series
func (h *HierarchyHandler) ListSeries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid study id"})
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := h.seriesRepo.ListByStudy(dbc, id)
	if err != nil {
		h.log.Error("list series failed", "study_internal_id", id, "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": rows})
}

// GET /api/series/:id/instances
func (h *HierarchyHandler) ListInstances(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid series id"})
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := h.instanceRepo.ListBySeries(dbc, id)
	if err != nil {
		h.log.Error("list instances failed", "series_internal_id", id, "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": rows})
}
