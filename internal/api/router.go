package api

import (
	"net/http"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/api/handlers"
	"github.com/Marga-Ghale/ora-progress-api/internal/api/middleware"
	"github.com/Marga-Ghale/ora-progress-api/internal/config"
	"github.com/Marga-Ghale/ora-progress-api/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterDeps holds what the router wires together. WebSocket and Status are
// optional.
type RouterDeps struct {
	Config    *config.Config
	Services  *service.Services
	WebSocket gin.HandlerFunc
	// Status adds dependency details to the /health body.
	Status func() gin.H
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	h := handlers.NewHandlers(deps.Services)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.OTel.Enabled() {
		r.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL, "http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "healthy", "timestamp": time.Now()}
		if deps.Status != nil {
			for k, v := range deps.Status() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})

	api := r.Group("/api")
	if deps.WebSocket != nil {
		// Authenticates from the query string itself
		api.GET("/ws", deps.WebSocket)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(deps.Services.Auth))
	{
		workspaces := protected.Group("/workspaces")
		{
			workspaces.POST("", h.Workspace.Create)
			workspaces.GET("", h.Workspace.List)
			workspaces.GET("/:id", h.Workspace.Get)
			workspaces.PUT("/:id", h.Workspace.Update)
			workspaces.GET("/:id/members", h.Workspace.ListMembers)
			workspaces.POST("/:id/invites", h.Workspace.Invite)

			workspaces.GET("/:id/projects", h.Project.ListByWorkspace)
			workspaces.POST("/:id/projects", h.Project.Create)

			workspaces.GET("/:id/progress", h.Progress.Workspace)
			workspaces.GET("/:id/time-reports", h.Time.Report)
			workspaces.GET("/:id/time-export", h.Time.Export)
		}

		protected.POST("/invites/:token/join", h.Workspace.Join)

		projects := protected.Group("/projects")
		{
			projects.GET("/:id", h.Project.Get)
			projects.PUT("/:id", h.Project.Update)
			projects.DELETE("/:id", h.Project.Delete)

			projects.POST("/:id/members", h.Project.AddMember)
			projects.DELETE("/:id/members/:userId", h.Project.RemoveMember)
			projects.POST("/:id/archive", h.Project.Archive)
			projects.POST("/:id/restore", h.Project.Restore)

			projects.GET("/:id/progress", h.Progress.Project)
			projects.GET("/:id/analytics", h.Progress.Analytics)
			projects.POST("/:id/progress/recompute", h.Project.Recompute)
			projects.GET("/:id/time", h.Time.ProjectTime)

			projects.GET("/:id/tasks", h.Task.ListByProject)
			projects.POST("/:id/tasks", h.Task.Create)
		}

		tasks := protected.Group("/tasks")
		{
			tasks.GET("/my", h.Task.ListMine)
			tasks.GET("/:id", h.Task.Get)
			tasks.PUT("/:id", h.Task.Update)
			tasks.DELETE("/:id", h.Task.Delete)

			tasks.PATCH("/:id/progress", h.Task.UpdateProgress)
			tasks.GET("/:id/progress", h.Progress.Task)

			tasks.POST("/:id/watchers", h.Task.AddWatcher)
			tasks.DELETE("/:id/watchers", h.Task.RemoveWatcher)
			tasks.DELETE("/:id/watchers/:userId", h.Task.RemoveWatcher)
		}

		protected.GET("/dashboard", h.Progress.UserDashboard)
		protected.PUT("/progress/tasks/bulk", h.Task.BulkUpdateProgress)

		timeRoutes := protected.Group("/time")
		{
			timeRoutes.POST("/timer/start", h.Time.StartTimer)
			timeRoutes.PUT("/timer/:entryId/stop", h.Time.StopTimer)
			timeRoutes.GET("/timer/running", h.Time.RunningTimer)

			timeRoutes.GET("/my-summary", h.Time.MySummary)

			timeRoutes.POST("/entries", h.Time.LogTime)
			timeRoutes.POST("/entries/bulk", h.Time.BulkLogTime)
			timeRoutes.GET("/entries", h.Time.ListEntries)
			timeRoutes.PUT("/entries/approve", h.Time.Approve)
			timeRoutes.PUT("/entries/:entryId", h.Time.UpdateEntry)
			timeRoutes.DELETE("/entries/:entryId", h.Time.DeleteEntry)
		}
	}

	return r
}
