package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/handler"
	"github.com/noah-isme/sma-roster-api/internal/repository"
	"github.com/noah-isme/sma-roster-api/internal/router"
	"github.com/noah-isme/sma-roster-api/internal/service"
	"github.com/noah-isme/sma-roster-api/pkg/cache"
	"github.com/noah-isme/sma-roster-api/pkg/config"
	"github.com/noah-isme/sma-roster-api/pkg/database"
	"github.com/noah-isme/sma-roster-api/pkg/database/migrations"
	"github.com/noah-isme/sma-roster-api/pkg/logger"
	appValidator "github.com/noah-isme/sma-roster-api/pkg/validator"
)

// @title SMA Roster API
// @version 1.0.0
// @description Principal dashboard and teacher roster management
// @BasePath /api/v1
// @schemes http https
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Migrations.Auto {
		if err := migrations.Up(cfg.Database.URL(), logr); err != nil {
			logr.Sugar().Fatalw("schema migration failed", "error", err)
		}
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
	} else {
		logr.Warn("redis disabled, drafts are kept in process memory and caching is off")
	}

	validate := appValidator.New()
	metrics := service.NewMetricsService()

	teacherRepo := repository.NewTeacherRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cacheSvc *service.CacheService
	if rdb != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(rdb, logr), metrics, cfg.Dashboard.CacheTTL, logr)
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	teacherSvc := service.NewTeacherService(teacherRepo, cacheSvc, metrics, validate, logr, service.TeacherServiceConfig{
		RosterCacheTTL: cfg.Roster.CacheTTL,
	})
	draftSvc := newDraftService(rdb, teacherSvc, metrics, validate, logr, cfg.Drafts)
	dashboardSvc := service.NewDashboardService(teacherSvc, cacheSvc, logr, service.DashboardServiceConfig{
		SchoolName:      cfg.Dashboard.SchoolName,
		Students:        cfg.Dashboard.Students,
		AttendanceRate:  cfg.Dashboard.AttendanceRate,
		PendingRequests: cfg.Dashboard.PendingRequests,
		CacheTTL:        cfg.Dashboard.CacheTTL,
	})

	deps := map[string]handler.Pinger{"postgres": db}
	if rdb != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Class:     handler.NewClassHandler(),
		Teacher:   handler.NewTeacherHandler(teacherSvc),
		Draft:     handler.NewDraftHandler(draftSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Health:    handler.NewHealthHandler(metrics.Handler(), deps),
	}
	r := router.Setup(cfg, authSvc, metrics, logr, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http server shutdown failed", zap.Error(err))
	}
	logr.Info("shutdown complete")
}

// newDraftService stores drafts in Redis when it is configured, otherwise in memory.
func newDraftService(rdb *redis.Client, teachers *service.TeacherService, metrics *service.MetricsService, validate *validator.Validate, logr *zap.Logger, cfg config.DraftConfig) *service.DraftService {
	draftCfg := service.DraftServiceConfig{TTL: cfg.TTL, SubmitLockTTL: cfg.SubmitLockTTL}
	if rdb == nil {
		return service.NewDraftService(repository.NewMemoryDraftRepository(), teachers, metrics, validate, logr, draftCfg)
	}
	return service.NewDraftService(repository.NewRedisDraftRepository(rdb), teachers, metrics, validate, logr, draftCfg)
}
