package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

const dashboardCachePrefix = "dashboard:"

type dashboardUserRepository interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type dashboardClassRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
}

type dashboardBookingRepository interface {
	CountByStatus(ctx context.Context, status models.BookingStatus) (int, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
	ListUpcomingByStudent(ctx context.Context, studentID string, limit int) ([]models.BookingDetail, error)
}

type dashboardWaitlistRepository interface {
	CountWaiting(ctx context.Context) (int, error)
	ListWaitingByStudent(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error)
}

type dashboardFeedbackRepository interface {
	SummaryOverall(ctx context.Context) (*models.FeedbackSummary, error)
}

type dashboardAnalytics interface {
	TeacherHours(ctx context.Context, from, to time.Time) ([]models.TeacherHourUsage, bool, error)
	StudentHoursByID(ctx context.Context, studentID string, from, to time.Time) (*models.StudentHourUsage, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardService assembles role-specific landing summaries.
type DashboardService struct {
	users     dashboardUserRepository
	classes   dashboardClassRepository
	bookings  dashboardBookingRepository
	waitlist  dashboardWaitlistRepository
	feedback  dashboardFeedbackRepository
	analytics dashboardAnalytics
	cache     dashboardCache
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewDashboardService creates an instance of DashboardService.
func NewDashboardService(users dashboardUserRepository, classes dashboardClassRepository,
	bookings dashboardBookingRepository, waitlist dashboardWaitlistRepository,
	feedback dashboardFeedbackRepository, analytics dashboardAnalytics,
	cache dashboardCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DashboardService{
		users:     users,
		classes:   classes,
		bookings:  bookings,
		waitlist:  waitlist,
		feedback:  feedback,
		analytics: analytics,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Admin builds the admin landing summary, cached briefly.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, error) {
	cacheKey := dashboardCachePrefix + "admin"
	if s.cache != nil {
		var cached models.AdminDashboard
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	students, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	teachers, err := s.users.CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}

	dayStart, dayEnd := todayBounds()
	classesToday, err := s.classes.CountBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}

	pending, err := s.bookings.CountByStatus(ctx, models.BookingStatusPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending bookings")
	}

	depth, err := s.waitlist.CountWaiting(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count waitlist")
	}

	var rating float64
	if summary, err := s.feedback.SummaryOverall(ctx); err == nil {
		rating = summary.AverageRating
	} else {
		s.logger.Warn("failed to load overall rating", zap.Error(err))
	}

	dashboard := &models.AdminDashboard{
		Students:        students,
		Teachers:        teachers,
		ClassesToday:    classesToday,
		PendingBookings: pending,
		WaitlistDepth:   depth,
		AverageRating:   rating,
		GeneratedAt:     time.Now().UTC(),
	}
	s.store(ctx, cacheKey, dashboard)
	return dashboard, nil
}

// Teacher builds a teacher's daily summary.
func (s *DashboardService) Teacher(ctx context.Context, teacherID string) (*models.TeacherDashboard, error) {
	dayStart, dayEnd := todayBounds()
	classesToday, _, err := s.classes.List(ctx, models.ClassFilter{
		TeacherID: teacherID,
		Status:    models.ClassStatusScheduled,
		From:      &dayStart,
		To:        &dayEnd,
		PageSize:  50,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list today's classes")
	}

	_, pending, err := s.bookings.List(ctx, models.BookingFilter{
		TeacherID: teacherID,
		Status:    models.BookingStatusPending,
		PageSize:  1,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending confirmations")
	}

	monthStart := time.Now().UTC().AddDate(0, 0, 1-time.Now().UTC().Day()).Truncate(24 * time.Hour)
	var taught float64
	if usage, _, err := s.analytics.TeacherHours(ctx, monthStart, time.Now().UTC()); err == nil {
		for _, u := range usage {
			if u.TeacherID == teacherID {
				taught = u.TaughtHours
				break
			}
		}
	} else {
		s.logger.Warn("failed to load taught hours", zap.String("teacher_id", teacherID), zap.Error(err))
	}

	return &models.TeacherDashboard{
		TeacherID:            teacherID,
		ClassesToday:         classesToday,
		PendingConfirmations: pending,
		TaughtHoursThisMonth: taught,
		GeneratedAt:          time.Now().UTC(),
	}, nil
}

// Student builds a student's bookings-and-balance summary.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*models.StudentDashboard, error) {
	upcoming, err := s.bookings.ListUpcomingByStudent(ctx, studentID, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming bookings")
	}

	positions, err := s.waitlist.ListWaitingByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist positions")
	}

	var remaining float64
	yearStart := time.Date(time.Now().UTC().Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	if usage, err := s.analytics.StudentHoursByID(ctx, studentID, yearStart, time.Now().UTC()); err == nil {
		remaining = usage.RemainingHours
	} else {
		s.logger.Warn("failed to load hour balance", zap.String("student_id", studentID), zap.Error(err))
	}

	return &models.StudentDashboard{
		StudentID:         studentID,
		UpcomingBookings:  upcoming,
		RemainingHours:    remaining,
		WaitlistPositions: positions,
		GeneratedAt:       time.Now().UTC(),
	}, nil
}

func (s *DashboardService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard", zap.String("key", key), zap.Error(err))
	}
}

func todayBounds() (time.Time, time.Time) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
