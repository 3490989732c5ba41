package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/inspectd/internal/handlers"
	"github.com/charlesng35/inspectd/internal/middleware"
	"github.com/charlesng35/inspectd/internal/models"
	"github.com/charlesng35/inspectd/internal/services"
)

func registerJobRoutes(api *gin.RouterGroup, jobs *services.JobService) {
	handler := handlers.NewJobHandler(jobs)
	admin := middleware.RequireRole(models.RoleAdmin)

	group := api.Group("/jobs")
	{
		group.POST("", admin, handler.Create)
		group.GET("/:id", middleware.RequireRole(models.RoleAdmin, models.RoleInspector), handler.Get)
		group.POST("/:id/assign", admin, handler.Assign)
	}
}

func registerReportRoutes(api *gin.RouterGroup, reports *services.ReportService, jobs *services.JobService) {
	handler := handlers.NewReportHandler(reports, jobs)
	admin := middleware.RequireRole(models.RoleAdmin)

	api.POST("/jobs/:id/report", middleware.RequireRole(models.RoleInspector), handler.Create)

	group := api.Group("/reports")
	{
		group.GET("/:id", middleware.RequireRole(models.RoleAdmin, models.RoleInspector), handler.Get)
		group.PATCH("/:id/status", admin, handler.UpdateStatus)
		group.DELETE("/:id", admin, handler.Delete)
	}
}
