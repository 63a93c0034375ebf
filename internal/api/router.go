// Package api provides HTTP routing for the Truckore identity core. It
// wires handlers, middleware, and services into the API consumed by the
// operator console.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/truckore/truckore/internal/api/handlers"
	"github.com/truckore/truckore/internal/api/middleware"
	"github.com/truckore/truckore/internal/config"
	"github.com/truckore/truckore/internal/models"
	"github.com/truckore/truckore/internal/service"
	"github.com/truckore/truckore/internal/storage"
	"go.uber.org/zap"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, store *storage.Store, logger *zap.Logger) *gin.Engine {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.CORSMiddleware(cfg))

	// Services
	auditService := service.NewAuditService(store, logger)
	configService := service.NewConfigService(store)
	userService := service.NewUserService(store, cfg, configService, auditService, logger)
	serialService := service.NewSerialService(configService)

	// Handlers
	setupHandler := handlers.NewSetupHandler(userService, configService, logger)
	authHandler := handlers.NewAuthHandler(userService, cfg, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	serialHandler := handlers.NewSerialHandler(serialService, logger)
	logHandler := handlers.NewLogHandler(auditService, logger)
	queryHandler := handlers.NewQueryHandler(store, logger)

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/setup/status", setupHandler.GetStatus)
		public.POST("/setup", setupHandler.PerformSetup)
		public.POST("/auth/login", authHandler.Login)
	}

	// Protected routes (require authentication)
	protected := router.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware(cfg))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/auth/password", userHandler.ChangePassword)

		protected.GET("/serial/next", serialHandler.Next)
		protected.POST("/serial/preview", serialHandler.Preview)

		admin := protected.Group("")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/users", userHandler.List)
			admin.POST("/users", userHandler.Create)
			admin.GET("/users/:id", userHandler.Get)
			admin.PUT("/users/:id", userHandler.Update)
			admin.DELETE("/users/:id", userHandler.Delete)
			admin.POST("/users/:id/password", userHandler.ResetPassword)

			admin.GET("/serial/config", serialHandler.GetConfig)
			admin.PUT("/serial/config", serialHandler.SetConfig)
			admin.POST("/serial/reset", serialHandler.ResetCounter)

			admin.GET("/security-logs", logHandler.List)
			admin.GET("/security-logs/range", logHandler.ListByDateRange)
		}

		super := protected.Group("")
		super.Use(middleware.RequireRole(models.RoleSuperAdmin))
		{
			super.POST("/security-logs/cleanup", logHandler.Cleanup)
			super.POST("/query", queryHandler.ExecuteQuery)
			super.POST("/non-query", queryHandler.ExecuteNonQuery)
		}
	}

	return router
}
