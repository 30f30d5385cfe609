package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

type maintenanceBookingRepository interface {
	ListOverdue(ctx context.Context, cutoff time.Time) ([]models.BookingDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus, at time.Time) error
}

type maintenanceClassRepository interface {
	ListEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Class, error)
	UpdateStatus(ctx context.Context, id string, status models.ClassStatus) error
}

type waitlistExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

type sessionPurger interface {
	PurgeExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationPurger interface {
	PurgeReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type exportCleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

type analyticsInvalidator interface {
	Invalidate(ctx context.Context)
}

// MaintenanceConfig tunes the periodic sweep cadence and grace periods.
type MaintenanceConfig struct {
	SweepInterval         time.Duration
	CompletionGrace       time.Duration
	NotificationRetention time.Duration
}

// MaintenanceService runs the background sweeps that settle overdue bookings,
// close ended classes and purge stale rows.
type MaintenanceService struct {
	bookings      maintenanceBookingRepository
	classes       maintenanceClassRepository
	waitlist      waitlistExpirer
	sessions      sessionPurger
	notifications notificationPurger
	exports       exportCleaner
	analytics     analyticsInvalidator
	config        MaintenanceConfig
	scheduler     gocron.Scheduler
	logger        *zap.Logger
}

// NewMaintenanceService creates an instance of MaintenanceService.
func NewMaintenanceService(bookings maintenanceBookingRepository, classes maintenanceClassRepository,
	waitlist waitlistExpirer, sessions sessionPurger, notifications notificationPurger,
	exports exportCleaner, analytics analyticsInvalidator, config MaintenanceConfig, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 15 * time.Minute
	}
	if config.CompletionGrace <= 0 {
		config.CompletionGrace = 2 * time.Hour
	}
	if config.NotificationRetention <= 0 {
		config.NotificationRetention = 30 * 24 * time.Hour
	}
	return &MaintenanceService{
		bookings:      bookings,
		classes:       classes,
		waitlist:      waitlist,
		sessions:      sessions,
		notifications: notifications,
		exports:       exports,
		analytics:     analytics,
		config:        config,
		logger:        logger,
	}
}

// Start schedules the recurring sweep and launches the scheduler.
func (s *MaintenanceService) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create maintenance scheduler: %w", err)
	}
	s.scheduler = scheduler

	if _, err := scheduler.NewJob(
		gocron.DurationJob(s.config.SweepInterval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
	); err != nil {
		return fmt.Errorf("schedule maintenance sweep: %w", err)
	}

	scheduler.Start()
	s.logger.Info("maintenance scheduler started", zap.Duration("interval", s.config.SweepInterval))
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *MaintenanceService) Stop() {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Warn("maintenance scheduler shutdown failed", zap.Error(err))
	}
}

// Sweep runs every maintenance task once. Each task is independent, so a
// failure in one does not stop the others.
func (s *MaintenanceService) Sweep(ctx context.Context) {
	changed := s.settleOverdueBookings(ctx)
	changed += s.closeEndedClasses(ctx)

	if expired, err := s.waitlist.ExpireStale(ctx); err != nil {
		s.logger.Error("waitlist expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		s.logger.Info("expired stale waitlist entries", zap.Int64("count", expired))
	}

	if purged, err := s.sessions.PurgeExpiredRefreshTokens(ctx, time.Now().UTC()); err != nil {
		s.logger.Error("session purge failed", zap.Error(err))
	} else if purged > 0 {
		s.logger.Info("purged expired sessions", zap.Int64("count", purged))
	}

	cutoff := time.Now().UTC().Add(-s.config.NotificationRetention)
	if purged, err := s.notifications.PurgeReadOlderThan(ctx, cutoff); err != nil {
		s.logger.Error("notification purge failed", zap.Error(err))
	} else if purged > 0 {
		s.logger.Info("purged read notifications", zap.Int64("count", purged))
	}

	if s.exports != nil {
		if removed, err := s.exports.Cleanup(ctx); err != nil {
			s.logger.Error("export cleanup failed", zap.Error(err))
		} else if removed > 0 {
			s.logger.Info("removed stale exports", zap.Int("count", removed))
		}
	}

	if changed > 0 && s.analytics != nil {
		s.analytics.Invalidate(ctx)
	}
}

// settleOverdueBookings finalises bookings whose class has already ended.
// Confirmed bookings become COMPLETED after the grace period; bookings never
// confirmed become NO_SHOW as soon as the class ends.
func (s *MaintenanceService) settleOverdueBookings(ctx context.Context) int {
	now := time.Now().UTC()
	overdue, err := s.bookings.ListOverdue(ctx, now)
	if err != nil {
		s.logger.Error("overdue booking sweep failed", zap.Error(err))
		return 0
	}

	settled := 0
	for _, booking := range overdue {
		var target models.BookingStatus
		switch booking.Status {
		case models.BookingStatusConfirmed:
			if now.Before(booking.ClassEndTime.Add(s.config.CompletionGrace)) {
				continue
			}
			target = models.BookingStatusCompleted
		case models.BookingStatusPending:
			target = models.BookingStatusNoShow
		default:
			continue
		}

		if err := s.bookings.UpdateStatus(ctx, booking.ID, target, now); err != nil {
			s.logger.Error("failed to settle overdue booking",
				zap.String("booking_id", booking.ID), zap.Error(err))
			continue
		}
		settled++
		s.logger.Info("settled overdue booking",
			zap.String("booking_id", booking.ID),
			zap.String("status", string(target)))
	}
	return settled
}

func (s *MaintenanceService) closeEndedClasses(ctx context.Context) int {
	ended, err := s.classes.ListEndedBefore(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("ended class sweep failed", zap.Error(err))
		return 0
	}

	closed := 0
	for _, class := range ended {
		if err := s.classes.UpdateStatus(ctx, class.ID, models.ClassStatusCompleted); err != nil {
			s.logger.Error("failed to close ended class",
				zap.String("class_id", class.ID), zap.Error(err))
			continue
		}
		closed++
	}
	if closed > 0 {
		s.logger.Info("closed ended classes", zap.Int("count", closed))
	}
	return closed
}
