package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

// DepartmentHandler serves the static municipal department catalog.
type DepartmentHandler struct{}

// NewDepartmentHandler creates a department handler.
func NewDepartmentHandler() *DepartmentHandler {
	return &DepartmentHandler{}
}

// List godoc
// @Summary List departments
// @Description List the municipal departments complaints can be filed against. Public; no authentication required.
// @Tags Departments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.Departments, nil)
}

// Categories godoc
// @Summary List complaint categories
// @Description List the closed set of complaint categories. Public; no authentication required.
// @Tags Departments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments/categories [get]
func (h *DepartmentHandler) Categories(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.ComplaintCategories, nil)
}
