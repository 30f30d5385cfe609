package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

const analyticsCachePrefix = "analytics:"

type analyticsRepository interface {
	StudentHourUsage(ctx context.Context, from, to time.Time) ([]models.StudentHourUsage, error)
	StudentHourUsageByID(ctx context.Context, studentID string, from, to time.Time) (*models.StudentHourUsage, error)
	TeacherHourUsage(ctx context.Context, from, to time.Time) ([]models.TeacherHourUsage, error)
	BookingStatusBreakdown(ctx context.Context, from, to time.Time) ([]models.BookingStatusCount, error)
	WaitlistPressure(ctx context.Context) ([]models.CourseWaitlistPressure, error)
}

type analyticsAvailabilityRepository interface {
	WeeklyMinutes(ctx context.Context, teacherID string) (int, error)
}

type analyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type analyticsPolicy interface {
	NoShowConsumesHours(ctx context.Context) bool
}

type cacheRecorder interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

// AnalyticsService computes hour consumption and booking analytics, cached
// in Redis for the configured TTL.
type AnalyticsService struct {
	repo         analyticsRepository
	availability analyticsAvailabilityRepository
	cache        analyticsCache
	policy       analyticsPolicy
	metrics      cacheRecorder
	cacheTTL     time.Duration
	logger       *zap.Logger
}

// NewAnalyticsService creates an instance of AnalyticsService.
func NewAnalyticsService(repo analyticsRepository, availability analyticsAvailabilityRepository,
	cache analyticsCache, policy analyticsPolicy, metrics cacheRecorder, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &AnalyticsService{
		repo:         repo,
		availability: availability,
		cache:        cache,
		policy:       policy,
		metrics:      metrics,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// StudentHours reports per-student hour consumption for the period. The
// second return value reports whether the payload came from cache.
func (s *AnalyticsService) StudentHours(ctx context.Context, from, to time.Time) ([]models.StudentHourUsage, bool, error) {
	cacheKey := fmt.Sprintf("%sstudent-hours:%s:%s", analyticsCachePrefix,
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	var cached []models.StudentHourUsage
	if s.lookupCache(ctx, cacheKey, &cached) {
		return cached, true, nil
	}

	usage, err := s.repo.StudentHourUsage(ctx, from, to)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute student hours")
	}

	countNoShow := s.policy.NoShowConsumesHours(ctx)
	for i := range usage {
		usage[i].ConsumedHours = consumedHours(usage[i].CompletedHours, usage[i].NoShowHours, countNoShow)
		usage[i].RemainingHours = usage[i].PurchasedHours - usage[i].ConsumedHours
	}

	s.storeCache(ctx, cacheKey, usage)
	return usage, false, nil
}

// StudentHoursByID reports hour consumption for one student.
func (s *AnalyticsService) StudentHoursByID(ctx context.Context, studentID string, from, to time.Time) (*models.StudentHourUsage, error) {
	usage, err := s.repo.StudentHourUsageByID(ctx, studentID, from, to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute student hours")
	}
	usage.ConsumedHours = consumedHours(usage.CompletedHours, usage.NoShowHours, s.policy.NoShowConsumesHours(ctx))
	usage.RemainingHours = usage.PurchasedHours - usage.ConsumedHours
	return usage, nil
}

// TeacherHours reports taught hours and availability utilisation per teacher.
func (s *AnalyticsService) TeacherHours(ctx context.Context, from, to time.Time) ([]models.TeacherHourUsage, bool, error) {
	cacheKey := fmt.Sprintf("%steacher-hours:%s:%s", analyticsCachePrefix,
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	var cached []models.TeacherHourUsage
	if s.lookupCache(ctx, cacheKey, &cached) {
		return cached, true, nil
	}

	usage, err := s.repo.TeacherHourUsage(ctx, from, to)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute teacher hours")
	}

	weeks := to.Sub(from).Hours() / (24 * 7)
	if weeks <= 0 {
		weeks = 1
	}
	for i := range usage {
		minutes, err := s.availability.WeeklyMinutes(ctx, usage[i].TeacherID)
		if err != nil {
			s.logger.Warn("failed to load availability minutes",
				zap.String("teacher_id", usage[i].TeacherID), zap.Error(err))
			continue
		}
		usage[i].AvailableHours = float64(minutes) / 60 * weeks
		if usage[i].AvailableHours > 0 {
			usage[i].Utilisation = usage[i].TaughtHours / usage[i].AvailableHours
		}
	}

	s.storeCache(ctx, cacheKey, usage)
	return usage, false, nil
}

// Bookings reports the status breakdown and waitlist pressure for a period.
func (s *AnalyticsService) Bookings(ctx context.Context, from, to time.Time) (*models.BookingAnalytics, bool, error) {
	cacheKey := fmt.Sprintf("%sbookings:%s:%s", analyticsCachePrefix,
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	var cached models.BookingAnalytics
	if s.lookupCache(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	breakdown, err := s.repo.BookingStatusBreakdown(ctx, from, to)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute booking breakdown")
	}
	pressure, err := s.repo.WaitlistPressure(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute waitlist pressure")
	}

	analytics := &models.BookingAnalytics{
		From:            from,
		To:              to,
		StatusBreakdown: breakdown,
		Waitlist:        pressure,
		GeneratedAt:     time.Now().UTC(),
	}
	s.storeCache(ctx, cacheKey, analytics)
	return analytics, false, nil
}

// Invalidate drops all cached analytics payloads.
func (s *AnalyticsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, analyticsCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.Error(err))
	}
}

func (s *AnalyticsService) lookupCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	start := time.Now()
	err := s.cache.Get(ctx, key, dest)
	hit := err == nil
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("analytics cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	return hit
}

func (s *AnalyticsService) storeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	start := time.Now()
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
}

func consumedHours(completed, noShow float64, countNoShow bool) float64 {
	if countNoShow {
		return completed + noShow
	}
	return completed
}
