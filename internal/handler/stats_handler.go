package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/civicdesk-api/internal/middleware"
	"github.com/civicdesk/civicdesk-api/internal/service"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

// StatsHandler serves aggregate complaint counts.
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(svc *service.StatsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Overview godoc
// @Summary Complaint statistics
// @Description Aggregate complaint counts by department, status and priority, scoped to the actor's visibility
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints/stats [get]
func (h *StatsHandler) Overview(c *gin.Context) {
	stats, cached, err := h.service.Overview(c.Request.Context(), middleware.UserFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{"cache": "miss"}
	if cached {
		meta["cache"] = "hit"
	}
	response.JSON(c, http.StatusOK, stats, nil, meta)
}
