package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chrisndirangu54/standstill/internal/models"
	"github.com/chrisndirangu54/standstill/internal/service"
	"github.com/chrisndirangu54/standstill/pkg/response"
)

// RunHandler handles HTTP requests for stored segmentation runs
type RunHandler struct {
	service  *service.SegmentService
	maxBytes int64
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *service.SegmentService, maxBytes int64) *RunHandler {
	return &RunHandler{service: service, maxBytes: maxBytes}
}

// CreateRun handles POST /api/v1/runs
func (h *RunHandler) CreateRun(c *gin.Context) {
	up, opts, ok := readUpload(c, h.maxBytes, h.service.Defaults())
	if !ok {
		return
	}
	defer up.Close()

	run, err := h.service.Submit(c.Request.Context(), up, opts)
	if run != nil {
		c.Header("Location", "/api/v1/runs/"+run.ID)
	}
	if err != nil {
		writeError(c, "Segmentation run failed", err)
		return
	}

	response.Created(c, run)
}

// GetRuns handles GET /api/v1/runs
func (h *RunHandler) GetRuns(c *gin.Context) {
	var filter models.RunFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	runs, total, err := h.service.ListRuns(filter)
	if err != nil {
		writeError(c, "Failed to get runs", err)
		return
	}

	page, pageSize := models.Normalize(filter.Page, filter.PageSize)
	response.Success(c, models.NewPaged(runs, total, page, pageSize))
}

// GetRun handles GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		writeError(c, "Failed to get run", err)
		return
	}

	response.Success(c, run)
}

// DeleteRun handles DELETE /api/v1/runs/:id
func (h *RunHandler) DeleteRun(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeleteRun(id); err != nil {
		writeError(c, "Failed to delete run", err)
		return
	}

	response.Success(c, gin.H{"id": id})
}

// GetStops handles GET /api/v1/runs/:id/stops
func (h *RunHandler) GetStops(c *gin.Context) {
	var filter models.StopFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	stops, total, err := h.service.GetStops(c.Param("id"), filter)
	if err != nil {
		writeError(c, "Failed to get stops", err)
		return
	}

	page, pageSize := models.Normalize(filter.Page, filter.PageSize)
	response.Success(c, models.NewPaged(stops, total, page, pageSize))
}

// GetRoutes handles GET /api/v1/runs/:id/routes
func (h *RunHandler) GetRoutes(c *gin.Context) {
	var filter models.RouteFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	routes, total, err := h.service.GetRoutes(c.Param("id"), filter)
	if err != nil {
		writeError(c, "Failed to get routes", err)
		return
	}

	page, pageSize := models.Normalize(filter.Page, filter.PageSize)
	response.Success(c, models.NewPaged(routes, total, page, pageSize))
}

// GetGeoJSON handles GET /api/v1/runs/:id/geojson
func (h *RunHandler) GetGeoJSON(c *gin.Context) {
	out, err := h.service.GetGeoJSON(c.Param("id"))
	if err != nil {
		writeError(c, "Failed to render run", err)
		return
	}

	response.Success(c, out)
}

// GetSummary handles GET /api/v1/runs/:id/summary
func (h *RunHandler) GetSummary(c *gin.Context) {
	sum, err := h.service.GetSummary(c.Param("id"))
	if err != nil {
		writeError(c, "Failed to summarize run", err)
		return
	}

	response.Success(c, sum)
}
