package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/civicdesk-api/internal/middleware"
	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/service"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

type complaintService interface {
	Create(ctx context.Context, req service.CreateComplaintRequest) (*models.Complaint, error)
	Get(ctx context.Context, actor *models.User, id string) (*models.Complaint, error)
	List(ctx context.Context, actor *models.User, filter models.ComplaintFilter) ([]models.Complaint, *models.Pagination, error)
	Transition(ctx context.Context, actor *models.User, id string, req service.TransitionRequest) (*models.Complaint, error)
	Assign(ctx context.Context, actor *models.User, id string, req service.AssignRequest) (*models.Complaint, error)
}

type statsInvalidator interface {
	Invalidate(ctx context.Context)
}

// ComplaintHandler exposes the complaint lifecycle over HTTP.
type ComplaintHandler struct {
	service complaintService
	stats   statsInvalidator
}

// NewComplaintHandler creates a complaint handler. The stats invalidator may
// be nil when the stats overview is disabled.
func NewComplaintHandler(svc complaintService, stats statsInvalidator) *ComplaintHandler {
	return &ComplaintHandler{service: svc, stats: stats}
}

// Create godoc
// @Summary Submit complaint
// @Description File a complaint against a municipal department. Public and anonymous; no authentication required.
// @Tags Complaints
// @Accept json
// @Produce json
// @Param payload body service.CreateComplaintRequest true "Complaint payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	var req service.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid complaint payload"))
		return
	}

	complaint, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateStats(c)
	response.Created(c, complaint)
}

// List godoc
// @Summary List complaints
// @Description List complaints visible to the authenticated staff user
// @Tags Complaints
// @Produce json
// @Param department query string false "Department filter (admin roles only)"
// @Param status query string false "Status filter"
// @Param priority query string false "Priority filter"
// @Param area query string false "Area filter"
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
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
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	complaints, pagination, err := h.service.List(c.Request.Context(), middleware.UserFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaints, pagination)
}

// Get godoc
// @Summary Get complaint
// @Description Fetch a complaint with its status history
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	complaint, err := h.service.Get(c.Request.Context(), middleware.UserFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaint, nil)
}

// Transition godoc
// @Summary Change complaint status
// @Description Move a complaint to a new lifecycle status, appending to its audit history
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body service.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id}/status [patch]
func (h *ComplaintHandler) Transition(c *gin.Context) {
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}

	complaint, err := h.service.Transition(c.Request.Context(), middleware.UserFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateStats(c)
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Assign godoc
// @Summary Assign complaint
// @Description Assign or unassign the complaint to a staff account
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body service.AssignRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id}/assignment [patch]
func (h *ComplaintHandler) Assign(c *gin.Context) {
	var req service.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	complaint, err := h.service.Assign(c.Request.Context(), middleware.UserFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateStats(c)
	response.JSON(c, http.StatusOK, complaint, nil)
}

func (h *ComplaintHandler) invalidateStats(c *gin.Context) {
	if h.stats != nil {
		h.stats.Invalidate(c.Request.Context())
	}
}
