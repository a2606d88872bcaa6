package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-roster-api/api/swagger"
	"github.com/noah-isme/sma-roster-api/internal/handler"
	"github.com/noah-isme/sma-roster-api/internal/middleware"
	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/service"
	"github.com/noah-isme/sma-roster-api/pkg/config"
	"github.com/noah-isme/sma-roster-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-roster-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-roster-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Class     *handler.ClassHandler
	Teacher   *handler.TeacherHandler
	Draft     *handler.DraftHandler
	Dashboard *handler.DashboardHandler
	Health    *handler.HealthHandler
}

// Setup builds the gin engine with global middleware and every route group.
func Setup(cfg *config.Config, tokens middleware.TokenValidator, metrics *service.MetricsService, logr *zap.Logger, h *Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if logr == nil {
		logr = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", h.Health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/sign-up", h.Auth.SignUp)
	auth.POST("/sign-in", h.Auth.SignIn)
	auth.POST("/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens), middleware.RequireRoles(models.RolePrincipal, models.RoleAdmin))

	secured.POST("/auth/sign-out", h.Auth.SignOut)
	secured.GET("/auth/me", h.Auth.Me)

	secured.GET("/dashboard", h.Dashboard.Summary)

	classes := secured.Group("/classes")
	classes.GET("/catalog", h.Class.Catalog)
	classes.POST("/canonicalize", h.Class.Canonicalize)

	teachers := secured.Group("/teachers")
	teachers.GET("", h.Teacher.List)
	teachers.GET("/export", h.Teacher.Export)
	teachers.GET("/:id", h.Teacher.Get)
	teachers.POST("", h.Teacher.Create)

	drafts := secured.Group("/teacher-drafts")
	drafts.POST("", h.Draft.Open)
	drafts.GET("/:id", h.Draft.Get)
	drafts.PATCH("/:id", h.Draft.Update)
	drafts.DELETE("/:id", h.Draft.Close)
	drafts.POST("/:id/classes", h.Draft.AddClass)
	drafts.DELETE("/:id/classes/:classId", h.Draft.RemoveClass)
	drafts.POST("/:id/validate", h.Draft.Validate)
	drafts.POST("/:id/submit", h.Draft.Submit)

	return r
}
