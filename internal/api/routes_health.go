package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/inspectd/internal/app"
	"github.com/charlesng35/inspectd/internal/handlers"
	"github.com/charlesng35/inspectd/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, health *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled {
		r.GET("/health", disabledHealthHandler)
		return
	}
	r.GET("/health", handlers.Health(health))
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}

// registerMediaRoutes serves locally stored report photos when the public URL
// is a path on this server.
func registerMediaRoutes(r *gin.Engine, cfg app.StorageConfig) {
	store := cfg.StoreConfig()
	if store.Type != "" && store.Type != "local" {
		return
	}
	if !strings.HasPrefix(store.BaseURL, "/") || store.BasePath == "" {
		return
	}
	r.Static(strings.TrimRight(store.BaseURL, "/"), store.BasePath)
}
