package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/handlers"
	"activity-reward-system/metrics"
	"activity-reward-system/middleware"
	"activity-reward-system/models"
	"activity-reward-system/services"
	"activity-reward-system/utils"
	"activity-reward-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	_, syncLogger := utils.InitializeLogger(cfg.IsProduction(), cfg.LogLevel)
	defer syncLogger()

	rules := services.DefaultRules()
	if cfg.RulesFile != "" {
		rules, err = services.LoadRules(cfg.RulesFile)
		if err != nil {
			zap.L().Fatal("failed to load rules file", zap.String("path", cfg.RulesFile), zap.Error(err))
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		zap.L().Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zap.L().Fatal("failed to get database handle", zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := models.AutoMigrate(db); err != nil {
		zap.L().Fatal("failed to migrate database", zap.Error(err))
	}

	activityService := services.NewActivityService(db, rules, cfg.RewardLocation)
	leaderboardService := services.NewLeaderboardService(db, cfg.RewardLocation)
	userService := services.NewUserService(db)
	nonceStore := services.NewNonceStore(db)
	adminService := services.NewAdminService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.StartMetricsCollection(ctx)

	schedCfg := services.SchedulerConfig{
		Nonces:          nonceStore,
		NoncePurgeEvery: cfg.NoncePurgeEvery,
		SnapshotEvery:   cfg.SnapshotEvery,
	}
	if cfg.SnapshotsEnabled() {
		uploader, err := utils.NewR2Uploader(ctx, utils.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			zap.L().Fatal("failed to initialize R2 client", zap.Error(err))
		}
		schedCfg.Publisher = services.NewSnapshotPublisher(leaderboardService, uploader)
	} else {
		zap.L().Info("R2 not configured, leaderboard snapshots disabled")
	}
	sched, err := services.StartScheduler(ctx, schedCfg)
	if err != nil {
		zap.L().Fatal("failed to start scheduler", zap.Error(err))
	}

	if cfg.IdentitySyncURL != "" {
		workers.NewProfileSyncWorker(db, cfg.IdentitySyncURL, cfg.GatewayToken, cfg.IdentitySyncEvery).Start(ctx)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Idempotency-Key, X-User-Address",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(middleware.RequestMetrics())

	// Probes and scraping bypass gateway auth.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := sqlDB.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))

	handlers.SetupRulesRoutes(app, rules)
	handlers.SetupLeaderboardRoutes(app, leaderboardService, userService)
	handlers.SetupActivityRoutes(app, activityService, userService)
	handlers.SetupNonceRoutes(app, nonceStore)
	handlers.SetupAdminRoutes(app, adminService, cfg.AdminSecret)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zap.L().Error("server error", zap.Error(err))
			stop()
		}
	}()

	zap.L().Info("✅ server running",
		zap.String("port", cfg.Port),
		zap.String("timezone", cfg.RewardLocation.String()),
		zap.Strings("cors_origins", cfg.AllowedOrigins),
		zap.Bool("snapshots", cfg.SnapshotsEnabled()),
		zap.Bool("profile_sync", cfg.IdentitySyncURL != ""),
	)

	<-ctx.Done()
	zap.L().Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zap.L().Error("server shutdown error", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		zap.L().Error("scheduler shutdown error", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		zap.L().Error("database close error", zap.Error(err))
	}
}
