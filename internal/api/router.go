package api

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/urbanisme-sn/portail/internal/api/handlers"
	"github.com/urbanisme-sn/portail/internal/api/middleware"
	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/auth"
	"github.com/urbanisme-sn/portail/internal/config"
	"github.com/urbanisme-sn/portail/internal/rbac"
	"github.com/urbanisme-sn/portail/internal/search"
	"gorm.io/gorm"
)

// Audit and role management are guarded like models of these names.
const (
	auditModel = "audit_logs"
	rolesModel = "roles"
)

// Deps are the services the router exposes.
type Deps struct {
	DB       *gorm.DB
	Models   *handlers.Models
	Audit    *audit.Service
	Enforcer *rbac.Enforcer
	Auth     *auth.Authenticator
	Searcher *search.Searcher
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	// Set Gin mode
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())
	router.Use(middleware.Metrics())
	router.Use(corsMiddleware(cfg.Server.CORSOrigins))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	recordHandler := handlers.NewRecordHandler(deps.Models, deps.Audit)
	modelHandler := handlers.NewModelHandler(deps.Models)
	publicHandler := handlers.NewPublicHandler(deps.Models, deps.Searcher)
	auditHandler := handlers.NewAuditHandler(deps.Audit)
	roleHandler := handlers.NewRoleHandler(deps.DB, deps.Enforcer, deps.Audit)

	can := func(action string) gin.HandlerFunc { return middleware.RequirePermission(deps.Enforcer, action) }

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", handlers.HealthCheck)
		public.GET("/version", handlers.GetVersion)
		public.POST("/auth/login", handlers.Login(deps.Auth))

		public.GET("/public", publicHandler.ListModels)
		public.GET("/public/search", publicHandler.Search)
		public.GET("/public/:model", publicHandler.List)
		public.GET("/public/:model/:key", publicHandler.Get)
	}

	// Protected routes (require authentication)
	protected := router.Group("/api/v1")
	protected.Use(deps.Auth.Middleware())
	{
		protected.POST("/auth/logout", handlers.Logout(deps.Auth))
		protected.GET("/auth/me", handlers.Me)
		protected.GET("/auth/permissions", roleHandler.MyPermissions)

		// Model descriptors and forms
		protected.GET("/models", modelHandler.ListModels)
		protected.GET("/models/:model", can(rbac.ActionRead), modelHandler.GetModel)
		protected.GET("/models/:model/form", can(rbac.ActionRead), modelHandler.GetForm)
		protected.POST("/models/:model/form", can(rbac.ActionRead), modelHandler.RenderForm)
		protected.POST("/models/:model/validate", can(rbac.ActionRead), modelHandler.Validate)
		protected.POST("/models/:model/files/:field", can(rbac.ActionRead), modelHandler.AcceptFiles)

		// Records
		records := protected.Group("/records/:model")
		{
			records.GET("", can(rbac.ActionRead), recordHandler.List)
			records.POST("", can(rbac.ActionCreate), recordHandler.Create)
			records.GET("/stats", can(rbac.ActionRead), recordHandler.Stats)
			records.GET("/export", can(rbac.ActionExport), recordHandler.Export)
			records.POST("/import", can(rbac.ActionImport), recordHandler.Import)
			records.POST("/bulk-update", can(rbac.ActionUpdate), recordHandler.BulkUpdate)
			records.POST("/bulk-delete", can(rbac.ActionDelete), recordHandler.BulkDelete)
			records.POST("/actions/:action", can(rbac.ActionRun), recordHandler.RunAction)
			records.GET("/:id", can(rbac.ActionRead), recordHandler.Get)
			records.PUT("/:id", can(rbac.ActionUpdate), recordHandler.Update)
			records.DELETE("/:id", can(rbac.ActionDelete), recordHandler.Delete)
			records.POST("/:id/duplicate", can(rbac.ActionCreate), recordHandler.Duplicate)
			records.POST("/:id/restore", can(rbac.ActionUpdate), recordHandler.Restore)
			records.DELETE("/:id/force", can(rbac.ActionDelete), recordHandler.ForceDelete)
			records.GET("/:id/history", can(rbac.ActionAudit), recordHandler.History)
		}

		// Audit logs
		auditLogs := protected.Group("/audit")
		auditLogs.Use(middleware.RequireModelPermission(deps.Enforcer, auditModel, rbac.ActionRead))
		{
			auditLogs.GET("/logs", auditHandler.ListLogs)
			auditLogs.GET("/analytics", auditHandler.Analytics)
		}

		// Roles
		protected.GET("/roles", middleware.RequireModelPermission(deps.Enforcer, rolesModel, rbac.ActionRead), roleHandler.ListRoles)
		protected.PUT("/roles/:name/quick-assign", middleware.RequireAdmin(deps.Enforcer), roleHandler.QuickAssign)
		protected.PUT("/users/:id/role", middleware.RequireAdmin(deps.Enforcer), roleHandler.AssignRole)
	}

	// Swagger documentation
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	slog.Info("API router initialized", "mode", cfg.Server.Mode, "models", len(deps.Models.Services))
	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		slog.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers for the allowed origins
func corsMiddleware(origins []string) gin.HandlerFunc {
	anyOrigin := len(origins) == 0 || slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case anyOrigin:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
