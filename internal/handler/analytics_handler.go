package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-portal-api/internal/middleware"
	"github.com/noah-isme/lms-portal-api/internal/models"
	"github.com/noah-isme/lms-portal-api/internal/service"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/response"
)

// AnalyticsHandler exposes hour-consumption and booking analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// StudentHours godoc
// @Summary Hour consumption per student
// @Tags Analytics
// @Produce json
// @Param from query string false "Range start (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Range end"
// @Success 200 {object} response.Envelope
// @Router /analytics/student-hours [get]
func (h *AnalyticsHandler) StudentHours(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	from, to := parseRange(c)
	start := time.Now()
	usage, cacheHit, err := h.analytics.StudentHours(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, usage, nil, meta)
}

// StudentHoursByID godoc
// @Summary Hour consumption for one student
// @Tags Analytics
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "Range start"
// @Param to query string false "Range end"
// @Success 200 {object} response.Envelope
// @Router /analytics/student-hours/{id} [get]
func (h *AnalyticsHandler) StudentHoursByID(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID := c.Param("id")
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent && claims.UserID != studentID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	from, to := parseRange(c)
	usage, err := h.analytics.StudentHoursByID(c.Request.Context(), studentID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, usage, nil)
}

// TeacherHours godoc
// @Summary Taught hours per teacher
// @Tags Analytics
// @Produce json
// @Param from query string false "Range start"
// @Param to query string false "Range end"
// @Success 200 {object} response.Envelope
// @Router /analytics/teacher-hours [get]
func (h *AnalyticsHandler) TeacherHours(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	from, to := parseRange(c)
	start := time.Now()
	usage, cacheHit, err := h.analytics.TeacherHours(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, usage, nil, meta)
}

// Bookings godoc
// @Summary Booking volume and status breakdown
// @Tags Analytics
// @Produce json
// @Param from query string false "Range start"
// @Param to query string false "Range end"
// @Success 200 {object} response.Envelope
// @Router /analytics/bookings [get]
func (h *AnalyticsHandler) Bookings(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	from, to := parseRange(c)
	start := time.Now()
	analytics, cacheHit, err := h.analytics.Bookings(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, analytics, nil, meta)
}
