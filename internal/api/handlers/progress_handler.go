package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/ora-progress-api/internal/api/middleware"
	"github.com/Marga-Ghale/ora-progress-api/internal/models"
	"github.com/Marga-Ghale/ora-progress-api/internal/service"
	"github.com/gin-gonic/gin"
)

// ProgressHandler serves the read-only progress dashboards.
type ProgressHandler struct {
	dashboardService service.DashboardService
}

func NewProgressHandler(dashboardService service.DashboardService) *ProgressHandler {
	return &ProgressHandler{dashboardService: dashboardService}
}

// Task - GET /tasks/:id/progress
func (h *ProgressHandler) Task(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	progress, err := h.dashboardService.GetTaskProgress(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Project - GET /projects/:id/progress
func (h *ProgressHandler) Project(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	progress, err := h.dashboardService.GetProjectProgress(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Workspace - GET /workspaces/:id/progress
func (h *ProgressHandler) Workspace(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	progress, err := h.dashboardService.GetWorkspaceProgress(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Analytics - GET /projects/:id/analytics?startDate=&endDate=&groupBy=
func (h *ProgressHandler) Analytics(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var q models.ProjectAnalyticsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	from, to, err := parseRange(q.From, q.To)
	if err != nil {
		badRequest(c, err)
		return
	}

	report, err := h.dashboardService.GetProjectAnalytics(c.Request.Context(), userID, c.Param("id"), service.AnalyticsQuery{
		From:    from,
		To:      to,
		GroupBy: q.GroupBy,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// UserDashboard - GET /dashboard
func (h *ProgressHandler) UserDashboard(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	dashboard, err := h.dashboardService.GetUserDashboard(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
