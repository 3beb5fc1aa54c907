package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/ora-progress-api/internal/api/middleware"
	"github.com/Marga-Ghale/ora-progress-api/internal/models"
	"github.com/Marga-Ghale/ora-progress-api/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Workspace Handler
// ============================================

type WorkspaceHandler struct {
	workspaceService service.WorkspaceService
}

func NewWorkspaceHandler(workspaceService service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

// Create - POST /workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ws, err := h.workspaceService.Create(c.Request.Context(), userID, service.CreateWorkspaceInput{
		Name:        req.Name,
		Description: req.Description,
		Plan:        req.SubscriptionPlan,
		Settings:    req.Settings,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws)
}

// List - GET /workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var q models.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	workspaces, total, err := h.workspaceService.ListForUser(c.Request.Context(), userID, q.Page, q.Limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(workspaces, total, q))
}

// Get - GET /workspaces/:id
func (h *WorkspaceHandler) Get(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	ws, err := h.workspaceService.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// Update - PUT /workspaces/:id
func (h *WorkspaceHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ws, err := h.workspaceService.Update(c.Request.Context(), userID, c.Param("id"), service.UpdateWorkspaceInput{
		Name:        req.Name,
		Description: req.Description,
		Plan:        req.SubscriptionPlan,
		Settings:    req.Settings,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// ListMembers - GET /workspaces/:id/members
func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	members, err := h.workspaceService.ListMembers(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.WorkspaceMemberResponse, len(members))
	for i, m := range members {
		response[i] = models.ToWorkspaceMemberResponse(m)
	}
	c.JSON(http.StatusOK, response)
}

// Invite - POST /workspaces/:id/invites
func (h *WorkspaceHandler) Invite(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	invite, err := h.workspaceService.GenerateInviteLink(c.Request.Context(), userID, c.Param("id"), service.InviteInput{
		Role:  req.Role,
		Email: req.Email,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

// Join - POST /invites/:token/join
func (h *WorkspaceHandler) Join(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	member, err := h.workspaceService.JoinByInvite(c.Request.Context(), userID, c.Param("token"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToWorkspaceMemberResponse(member))
}
