package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/handler"
	"github.com/noah-isme/lms-portal-api/internal/middleware"
	"github.com/noah-isme/lms-portal-api/internal/models"
	"github.com/noah-isme/lms-portal-api/internal/repository"
	"github.com/noah-isme/lms-portal-api/internal/service"
	"github.com/noah-isme/lms-portal-api/pkg/config"
	"github.com/noah-isme/lms-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-portal-api/pkg/middleware/requestid"
)

type routerDeps struct {
	db            *sqlx.DB
	redis         *redis.Client
	userRepo      *repository.UserRepository
	auth          *service.AuthService
	users         *service.UserService
	courses       *service.CourseService
	classes       *service.ClassService
	bookings      *service.BookingService
	waitlist      *service.WaitlistService
	availability  *service.AvailabilityService
	feedback      *service.FeedbackService
	notifications *service.NotificationService
	settings      *service.SettingsService
	analytics     *service.AnalyticsService
	dashboard     *service.DashboardService
	exports       *service.ExportService
	metrics       *service.MetricsService
}

func buildRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(deps.metrics))

	authHandler := handler.NewAuthHandler(deps.auth)
	userHandler := handler.NewUserHandler(deps.users)
	courseHandler := handler.NewCourseHandler(deps.courses)
	classHandler := handler.NewClassHandler(deps.classes, deps.waitlist)
	bookingHandler := handler.NewBookingHandler(deps.bookings)
	waitlistHandler := handler.NewWaitlistHandler(deps.waitlist)
	availabilityHandler := handler.NewAvailabilityHandler(deps.availability)
	feedbackHandler := handler.NewFeedbackHandler(deps.feedback)
	notificationHandler := handler.NewNotificationHandler(deps.notifications)
	settingsHandler := handler.NewSettingsHandler(deps.settings)
	analyticsHandler := handler.NewAnalyticsHandler(deps.analytics)
	dashboardHandler := handler.NewDashboardHandler(deps.dashboard)
	exportHandler := handler.NewExportHandler(deps.exports)
	metricsHandler := handler.NewMetricsHandler(deps.metrics)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := deps.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := deps.redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	jwt := middleware.JWT(deps.auth)
	staff := middleware.Staff()
	teacherOrStaff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)
	studentOrStaff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStudent)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/logout", jwt, authHandler.Logout)
		auth.POST("/change-password", jwt, authHandler.ChangePassword)
		auth.GET("/me", jwt, authHandler.Me)
	}

	users := api.Group("/users", jwt)
	{
		users.GET("", staff, userHandler.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.POST("", staff, middleware.Audit(deps.userRepo, logr, "CREATE", "users"), userHandler.Create)
		users.PUT("/:id", staff, middleware.Audit(deps.userRepo, logr, "UPDATE", "users"), userHandler.Update)
		users.POST("/:id/top-up", staff, middleware.Audit(deps.userRepo, logr, "TOP_UP", "users"), userHandler.TopUpHours)
		users.DELETE("/:id", staff, middleware.Audit(deps.userRepo, logr, "DELETE", "users"), userHandler.Delete)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", middleware.OptionalJWT(deps.auth), courseHandler.List)
		courses.GET("/:id", middleware.OptionalJWT(deps.auth), courseHandler.Get)
		courses.GET("/slug/:slug", middleware.OptionalJWT(deps.auth), courseHandler.GetBySlug)
		courses.POST("", jwt, staff, courseHandler.Create)
		courses.PUT("/:id", jwt, staff, courseHandler.Update)
		courses.DELETE("/:id", jwt, staff, courseHandler.Delete)
	}

	classes := api.Group("/classes", jwt)
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.GET("/:id/roster", teacherOrStaff, classHandler.Roster)
		classes.GET("/:id/waitlist", teacherOrStaff, classHandler.Waitlist)
		classes.POST("", staff, classHandler.Create)
		classes.PUT("/:id", staff, classHandler.Update)
		classes.POST("/:id/cancel", staff, classHandler.Cancel)
	}

	bookings := api.Group("/bookings", jwt)
	{
		bookings.GET("", bookingHandler.List)
		bookings.GET("/:id", bookingHandler.Get)
		bookings.POST("", studentOrStaff, bookingHandler.Create)
		bookings.POST("/:id/confirm", teacherOrStaff, bookingHandler.Confirm)
		bookings.DELETE("/:id", bookingHandler.Cancel)
		bookings.POST("/:id/complete", teacherOrStaff, bookingHandler.Complete)
		bookings.POST("/:id/no-show", teacherOrStaff, bookingHandler.NoShow)
		bookings.POST("/:id/reschedule", studentOrStaff, bookingHandler.Reschedule)
	}

	waitlist := api.Group("/waitlist", jwt)
	{
		waitlist.GET("", waitlistHandler.ListMine)
		waitlist.POST("", middleware.RequireRoles(models.RoleStudent), waitlistHandler.Join)
		waitlist.DELETE("/:id", waitlistHandler.Leave)
	}

	availability := api.Group("/availability", jwt, teacherOrStaff)
	{
		availability.GET("/windows", availabilityHandler.ListWindows)
		availability.POST("/windows", availabilityHandler.AddWindow)
		availability.DELETE("/windows/:id", availabilityHandler.RemoveWindow)
		availability.GET("/blackouts", availabilityHandler.ListBlackouts)
		availability.POST("/blackouts", availabilityHandler.AddBlackout)
		availability.DELETE("/blackouts/:id", availabilityHandler.RemoveBlackout)
	}

	feedback := api.Group("/feedback", jwt)
	{
		feedback.POST("", middleware.RequireRoles(models.RoleStudent, models.RoleTeacher), feedbackHandler.Create)
		feedback.GET("/teachers/:id", feedbackHandler.ListByTeacher)
		feedback.GET("/teachers/:id/summary", feedbackHandler.TeacherSummary)
		feedback.GET("/courses/:id/summary", feedbackHandler.CourseSummary)
	}

	notifications := api.Group("/notifications", jwt)
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
	}

	settings := api.Group("/settings", jwt, staff)
	{
		settings.GET("", settingsHandler.List)
		settings.GET("/:key", settingsHandler.Get)
		settings.PUT("/:key", settingsHandler.Update)
	}

	analytics := api.Group("/analytics", jwt)
	{
		analytics.GET("/student-hours", staff, analyticsHandler.StudentHours)
		analytics.GET("/student-hours/:id", analyticsHandler.StudentHoursByID)
		analytics.GET("/teacher-hours", staff, analyticsHandler.TeacherHours)
		analytics.GET("/bookings", staff, analyticsHandler.Bookings)
		analytics.GET("/system", staff, metricsHandler.Snapshot)
	}

	dashboard := api.Group("/dashboard", jwt)
	{
		dashboard.GET("/admin", staff, dashboardHandler.Admin)
		dashboard.GET("/teacher", teacherOrStaff, dashboardHandler.Teacher)
		dashboard.GET("/student", studentOrStaff, dashboardHandler.Student)
	}

	exports := api.Group("/exports")
	{
		exports.GET("/download", exportHandler.Download)
		exports.POST("", jwt, staff, exportHandler.Create)
		exports.GET("", jwt, staff, exportHandler.List)
		exports.GET("/:id", jwt, staff, exportHandler.Get)
	}

	return r
}
