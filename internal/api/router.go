package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/inspectd/internal/app"
	iauth "github.com/charlesng35/inspectd/internal/auth"
	"github.com/charlesng35/inspectd/internal/middleware"
	"github.com/charlesng35/inspectd/internal/monitoring"
	"github.com/charlesng35/inspectd/internal/services"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
	apiRateLimit   = 300
	apiRateWindow  = time.Minute
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Users         *services.UserService
	Jobs          *services.JobService
	Reports       *services.ReportService
	Devices       *services.PushTokenService
	Notifications *services.NotificationService
}

func (s Services) validate() error {
	switch {
	case s.Users == nil:
		return fmt.Errorf("user service must be provided")
	case s.Jobs == nil:
		return fmt.Errorf("job service must be provided")
	case s.Reports == nil:
		return fmt.Errorf("report service must be provided")
	case s.Devices == nil:
		return fmt.Errorf("push token service must be provided")
	case s.Notifications == nil:
		return fmt.Errorf("notification service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
// rateStore may be nil, in which case limits are tracked per process.
func NewRouter(cfg *app.Config, jwt *iauth.JWTService, svc Services, health *monitoring.HealthManager, rateStore middleware.RateStore) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if err := svc.validate(); err != nil {
		return nil, err
	}
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	metricsPath := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics(metricsPath))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	registerHealthRoutes(r, cfg, health)
	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(metricsPath, gin.WrapH(promhttp.Handler()))
	}
	registerMediaRoutes(r, cfg.Storage)

	public := r.Group("/api")
	public.Use(middleware.RateLimit(rateStore, authRateLimit, authRateWindow))

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))
	api.Use(middleware.RateLimit(rateStore, apiRateLimit, apiRateWindow))

	registerUserRoutes(public, api, svc.Users, jwt)
	registerJobRoutes(api, svc.Jobs)
	registerReportRoutes(api, svc.Reports, svc.Jobs)
	registerDeviceRoutes(api, svc.Devices)
	registerNotificationRoutes(api, svc.Notifications)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
