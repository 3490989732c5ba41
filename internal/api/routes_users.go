package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/inspectd/internal/auth"
	"github.com/charlesng35/inspectd/internal/handlers"
	"github.com/charlesng35/inspectd/internal/middleware"
	"github.com/charlesng35/inspectd/internal/models"
	"github.com/charlesng35/inspectd/internal/services"
)

func registerUserRoutes(public, api *gin.RouterGroup, users *services.UserService, jwt *iauth.JWTService) {
	handler := handlers.NewUserHandler(users, jwt)

	public.POST("/users/register", handler.Register)
	public.POST("/users/login", handler.Login)

	group := api.Group("/users")
	{
		group.GET("/me", handler.Me)

		admin := middleware.RequireRole(models.RoleAdmin)
		group.POST("/:id/approve", admin, handler.Approve)
		group.POST("/:id/suspend", admin, handler.Suspend)
		group.POST("/:id/unsuspend", admin, handler.Unsuspend)
	}
}
