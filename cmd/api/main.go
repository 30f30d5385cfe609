package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	_ "github.com/noah-isme/lms-portal-api/api/swagger"
	"github.com/noah-isme/lms-portal-api/internal/repository"
	"github.com/noah-isme/lms-portal-api/internal/service"
	"github.com/noah-isme/lms-portal-api/pkg/cache"
	"github.com/noah-isme/lms-portal-api/pkg/config"
	"github.com/noah-isme/lms-portal-api/pkg/database"
	"github.com/noah-isme/lms-portal-api/pkg/jobs"
	"github.com/noah-isme/lms-portal-api/pkg/logger"
	"github.com/noah-isme/lms-portal-api/pkg/mailer"
	"github.com/noah-isme/lms-portal-api/pkg/storage"
)

// @title LMS Portal API
// @version 1.0.0
// @description Booking, waitlist and hour-consumption backend for the tutoring portal
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
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	settingsSvc := service.NewSettingsService(settingsRepo, cacheRepo, userRepo, service.SettingsDefaults{
		DuplicateWindow:     cfg.Bookings.DuplicateWindow,
		SimilarityThreshold: cfg.Bookings.SimilarityThreshold,
		NoShowConsumesHours: true,
		WaitlistAutoPromote: cfg.Waitlist.Enabled,
	}, 5*time.Minute, logr)

	mailClient := mailer.New(cfg.SMTP)
	notificationSvc := service.NewNotificationService(notificationRepo, mailClient, cfg.Notifications.EmailEnabled, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		Logger:     logr,
	}, logr)

	waitlistSvc := service.NewWaitlistService(waitlistRepo, classRepo, bookingRepo, notificationSvc, cfg.Waitlist.EntryTTL, logr)
	bookingSvc := service.NewBookingService(bookingRepo, classRepo, courseRepo, userRepo, waitlistSvc, notificationSvc, settingsSvc, nil, logr)
	classSvc := service.NewClassService(classRepo, courseRepo, availabilityRepo, bookingRepo, waitlistRepo, notificationSvc, nil, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, nil, logr)
	userSvc := service.NewUserService(userRepo, nil, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, nil, logr)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, bookingRepo, classRepo, nil, logr)

	authSvc := service.NewAuthService(userRepo, notificationSvc, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "lms-portal-api",
	})

	analyticsSvc := service.NewAnalyticsService(analyticsRepo, availabilityRepo, cacheRepo, settingsSvc, metricsSvc, cfg.Analytics.CacheTTL, logr)
	dashboardSvc := service.NewDashboardService(userRepo, classRepo, bookingRepo, waitlistRepo, feedbackRepo, analyticsSvc, cacheRepo, cfg.Dashboard.CacheTTL, logr)

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(exportRepo, bookingRepo, exportStorage, exportSigner, 0, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	}, nil, logr)

	maintenanceSvc := service.NewMaintenanceService(bookingRepo, classRepo, waitlistSvc, userRepo, notificationRepo,
		exportSvc, analyticsSvc, service.MaintenanceConfig{
			SweepInterval:   cfg.Maintenance.SweepInterval,
			CompletionGrace: cfg.Bookings.CompletionGrace,
		}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := settingsSvc.Seed(ctx); err != nil {
		logr.Sugar().Warnw("failed to seed settings", "error", err)
	}

	notificationSvc.Start(ctx)
	exportSvc.Start(ctx)
	if cfg.Maintenance.Enabled {
		if err := maintenanceSvc.Start(ctx); err != nil {
			logr.Sugar().Warnw("failed to start maintenance scheduler", "error", err)
		}
	}

	router := buildRouter(cfg, logr, routerDeps{
		db:            db,
		redis:         redisClient,
		userRepo:      userRepo,
		auth:          authSvc,
		users:         userSvc,
		courses:       courseSvc,
		classes:       classSvc,
		bookings:      bookingSvc,
		waitlist:      waitlistSvc,
		availability:  availabilitySvc,
		feedback:      feedbackSvc,
		notifications: notificationSvc,
		settings:      settingsSvc,
		analytics:     analyticsSvc,
		dashboard:     dashboardSvc,
		exports:       exportSvc,
		metrics:       metricsSvc,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	maintenanceSvc.Stop()
	exportSvc.Stop()
	notificationSvc.Stop()
	logr.Sugar().Infow("shutdown complete")
}
