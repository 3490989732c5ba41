package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/inspectd/internal/handlers"
	"github.com/charlesng35/inspectd/internal/services"
)

func registerDeviceRoutes(api *gin.RouterGroup, devices *services.PushTokenService) {
	handler := handlers.NewDeviceHandler(devices)

	group := api.Group("/devices")
	{
		group.POST("/login", handler.Login)
		group.POST("/logout", handler.Logout)
		group.PATCH("/notifications", handler.SetNotifications)
	}
}

func registerNotificationRoutes(api *gin.RouterGroup, notifications *services.NotificationService) {
	handler := handlers.NewNotificationHandler(notifications)

	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.POST("/:id/read", handler.MarkRead)
	}
}
