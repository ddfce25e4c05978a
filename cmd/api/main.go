package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/civicdesk/civicdesk-api/api/swagger"
	"github.com/civicdesk/civicdesk-api/internal/handler"
	"github.com/civicdesk/civicdesk-api/internal/middleware"
	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/repository"
	"github.com/civicdesk/civicdesk-api/internal/service"
	"github.com/civicdesk/civicdesk-api/pkg/cache"
	"github.com/civicdesk/civicdesk-api/pkg/config"
	"github.com/civicdesk/civicdesk-api/pkg/database"
	"github.com/civicdesk/civicdesk-api/pkg/jobs"
	"github.com/civicdesk/civicdesk-api/pkg/logger"
	corsmiddleware "github.com/civicdesk/civicdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/civicdesk/civicdesk-api/pkg/middleware/requestid"
)

// @title CivicDesk API
// @version 1.0.0
// @description Municipal complaint management: anonymous citizen submissions, staff triage and a full status audit trail.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, stats cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	auditQueue := jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return fmt.Errorf("unexpected audit payload %T", job.Payload)
		}
		return userRepo.CreateAuditLog(ctx, entry)
	}, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	})
	auditQueue.Start(context.Background())
	defer auditQueue.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	complaintSvc := service.NewComplaintService(complaintRepo, userRepo, validate, logr)
	statsSvc := service.NewStatsService(complaintRepo, cacheRepo, metricsSvc, logr, cfg.Stats.CacheTTL)
	exportSvc := service.NewExportService(complaintRepo, logr, cfg.Exports.MaxRows)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	complaintHandler := handler.NewComplaintHandler(complaintSvc, statsSvc)
	departmentHandler := handler.NewDepartmentHandler()
	statsHandler := handler.NewStatsHandler(statsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "down"
			status = http.StatusServiceUnavailable
		}
		if redisClient == nil {
			checks["redis"] = "disabled"
		} else if err := redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public surface: anonymous complaint submission and reference data.
	api.POST("/complaints", complaintHandler.Create)
	api.GET("/departments", departmentHandler.List)
	api.GET("/departments/categories", departmentHandler.Categories)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc, userRepo))
		authed.POST("/logout", authHandler.Logout)
		authed.GET("/me", authHandler.Me)
		authed.POST("/change-password", authHandler.ChangePassword)
	}

	complaints := api.Group("/complaints", middleware.JWT(authSvc, userRepo))
	{
		complaints.GET("", middleware.Authorize("complaints", models.ActionRead), complaintHandler.List)
		if cfg.Stats.Enabled {
			complaints.GET("/stats", middleware.Authorize("complaints", models.ActionRead), statsHandler.Overview)
		}
		if cfg.Exports.Enabled {
			complaints.GET("/export",
				middleware.Authorize("complaints", models.ActionRead),
				middleware.Audit(auditQueue, models.AuditActionComplaintExport, "complaints"),
				exportHandler.Export)
		}
		complaints.GET("/:id", middleware.Authorize("complaints", models.ActionRead), complaintHandler.Get)
		complaints.PATCH("/:id/status",
			middleware.Authorize("complaints", models.ActionUpdate),
			middleware.Audit(auditQueue, models.AuditActionStatusTransition, "complaints"),
			complaintHandler.Transition)
		complaints.PATCH("/:id/assignment",
			middleware.Authorize("complaints", models.ActionUpdate),
			middleware.Audit(auditQueue, models.AuditActionComplaintAssign, "complaints"),
			complaintHandler.Assign)
	}

	users := api.Group("/users", middleware.JWT(authSvc, userRepo))
	{
		users.GET("", middleware.Authorize("users", models.ActionRead), userHandler.List)
		users.POST("", middleware.Authorize("users", models.ActionCreate), userHandler.Create)
		users.GET("/:id", middleware.Authorize("users", models.ActionRead), userHandler.Get)
		users.PUT("/:id", middleware.Authorize("users", models.ActionUpdate), userHandler.Update)
		users.PATCH("/:id/status", middleware.Authorize("users", models.ActionUpdate), userHandler.SetStatus)
		users.PUT("/:id/permissions", middleware.Authorize("users", models.ActionManage), userHandler.ReplacePermissions)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
