package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/civicdesk-api/internal/middleware"
	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/service"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

// ExportHandler streams complaint listings as downloadable files.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates an export handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Export godoc
// @Summary Export complaints
// @Description Download the complaints visible to the actor as CSV or PDF
// @Tags Complaints
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Param department query string false "Department filter (admin roles only)"
// @Param status query string false "Status filter"
// @Param priority query string false "Priority filter"
// @Param area query string false "Area filter"
// @Param search query string false "Search term"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	var filter models.ComplaintFilter
	filter.Department = c.Query("department")
	if status := c.Query("status"); status != "" {
		st := models.ComplaintStatus(status)
		filter.Status = &st
	}
	if priority := c.Query("priority"); priority != "" {
		p := models.ComplaintPriority(priority)
		filter.Priority = &p
	}
	filter.Area = c.Query("area")
	filter.Search = c.Query("search")

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.service.Export(c.Request.Context(), middleware.UserFromContext(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
