package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/api"
	"github.com/charlesng35/inspectd/internal/app"
	"github.com/charlesng35/inspectd/internal/app/maintenance"
	iauth "github.com/charlesng35/inspectd/internal/auth"
	"github.com/charlesng35/inspectd/internal/cache"
	"github.com/charlesng35/inspectd/internal/database"
	"github.com/charlesng35/inspectd/internal/middleware"
	"github.com/charlesng35/inspectd/internal/monitoring"
	"github.com/charlesng35/inspectd/internal/monitoring/checks"
	"github.com/charlesng35/inspectd/internal/push"
	"github.com/charlesng35/inspectd/internal/services"
	"github.com/charlesng35/inspectd/internal/storage"
	"github.com/charlesng35/inspectd/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     redis.UniversalClient
	Scheduler *maintenance.Scheduler
	RateStore middleware.RateStore
	Health    *monitoring.HealthManager
	Router    *gin.Engine
}

// bootstrapRuntime opens storage backends, builds the services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; using in-process rate limits and no sweep lock", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	store, err := storage.New(cfg.Storage.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise media storage: %w", err)
	}

	gateway, err := newPushGateway(ctx, cfg)
	if err != nil {
		return nil, err
	}

	dispatcher, err := services.NewNotificationDispatcher(stack.DB, gateway)
	if err != nil {
		return nil, fmt.Errorf("initialise notification dispatcher: %w", err)
	}

	svc, err := buildServices(stack.DB, store, dispatcher, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Auth.BootstrapAdmin() {
		admin, err := svc.Users.EnsureAdmin(ctx, cfg.Auth.Admin.Name, cfg.Auth.Admin.Email, cfg.Auth.Admin.Password)
		if err != nil {
			return nil, fmt.Errorf("bootstrap administrator: %w", err)
		}
		log.Info("administrator ready", zap.String("user_id", admin.ID))
	}

	var sweeper maintenance.Sweeper
	if cfg.Sweeper.Enabled {
		sessionSweeper, err := services.NewSessionSweeper(stack.DB, cfg.Auth.JWT.AccessTokenTTL, services.WithSweepBatchSize(cfg.Sweeper.BatchSize))
		if err != nil {
			return nil, fmt.Errorf("initialise session sweeper: %w", err)
		}
		sweeper = sessionSweeper
	}

	opts := []maintenance.Option{
		maintenance.WithSweepInterval(cfg.Sweeper.Interval()),
		maintenance.WithNotificationRetentionDays(cfg.Maintenance.NotificationRetentionDays),
	}
	if cfg.Sweeper.Lock.Enabled && stack.Redis != nil {
		opts = append(opts, maintenance.WithLocker(cache.NewLocker(stack.Redis), cfg.Sweeper.Lock.TTL))
	}
	stack.Scheduler = maintenance.NewScheduler(stack.DB, sweeper, opts...)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Health = monitoring.NewHealthManager(checks.Database(stack.DB, 0))
	if stack.Redis != nil {
		stack.Health.Register(checks.Redis(stack.Redis, 0))
		stack.RateStore = cache.NewWindowCounter(stack.Redis)
	}
	if cfg.Sweeper.Enabled {
		stack.Health.Register(checks.Sweeper(stack.Scheduler, 3*cfg.Sweeper.Interval(), nil))
	}

	stack.Router, err = api.NewRouter(cfg, jwtSvc, svc, stack.Health, stack.RateStore)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func newPushGateway(ctx context.Context, cfg *app.Config) (push.Gateway, error) {
	if !cfg.Push.Enabled {
		return push.NewLogGateway(logger.WithModule("push")), nil
	}
	gateway, err := push.NewFCMGateway(ctx, cfg.Push.GatewayConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise push gateway: %w", err)
	}
	return gateway, nil
}

func buildServices(db *gorm.DB, store storage.Store, notifier services.Notifier, cfg *app.Config) (api.Services, error) {
	var (
		svc api.Services
		err error
	)

	if svc.Users, err = services.NewUserService(db, notifier); err != nil {
		return svc, fmt.Errorf("initialise user service: %w", err)
	}
	if svc.Jobs, err = services.NewJobService(db, notifier); err != nil {
		return svc, fmt.Errorf("initialise job service: %w", err)
	}
	svc.Reports, err = services.NewReportService(db, store, notifier, services.WithUploadConcurrency(cfg.Storage.UploadConcurrency))
	if err != nil {
		return svc, fmt.Errorf("initialise report service: %w", err)
	}
	if svc.Devices, err = services.NewPushTokenService(db); err != nil {
		return svc, fmt.Errorf("initialise push token service: %w", err)
	}
	if svc.Notifications, err = services.NewNotificationService(db); err != nil {
		return svc, fmt.Errorf("initialise notification service: %w", err)
	}
	return svc, nil
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		stopCtx := s.Scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	var auth app.DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		auth = cfg.Database.Postgres
	case "mysql":
		auth = cfg.Database.MySQL
	default:
		// unsupported drivers surface from database.Open
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = strings.TrimSpace(auth.Password)
	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
