package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type waitlistRepository interface {
	Create(ctx context.Context, entry *models.WaitlistEntry) error
	FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error)
	ExistsWaiting(ctx context.Context, studentID, classID string) (bool, error)
	ListWaitingByClass(ctx context.Context, classID string) ([]models.WaitlistEntryDetail, error)
	ListWaitingByStudent(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error)
	FindNextWaiting(ctx context.Context, classID string) (*models.WaitlistEntry, error)
	Position(ctx context.Context, entry *models.WaitlistEntry) (int, error)
	UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus, promotedAt *time.Time) error
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type waitlistClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	AdjustEnrolledCount(ctx context.Context, id string, delta int) (bool, error)
}

type waitlistBookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error)
}

type waitlistNotifier interface {
	NotifyWaitlistPromoted(ctx context.Context, booking *models.BookingDetail)
}

// WaitlistService manages FIFO queues for full classes.
type WaitlistService struct {
	repo     waitlistRepository
	classes  waitlistClassRepository
	bookings waitlistBookingRepository
	notifier waitlistNotifier
	entryTTL time.Duration
	logger   *zap.Logger
}

// NewWaitlistService creates an instance of WaitlistService.
func NewWaitlistService(repo waitlistRepository, classes waitlistClassRepository, bookings waitlistBookingRepository,
	notifier waitlistNotifier, entryTTL time.Duration, logger *zap.Logger) *WaitlistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{
		repo:     repo,
		classes:  classes,
		bookings: bookings,
		notifier: notifier,
		entryTTL: entryTTL,
		logger:   logger,
	}
}

// Join appends the student to the class queue and returns the entry with its
// position: one more than the number of earlier waiting entries.
func (s *WaitlistService) Join(ctx context.Context, studentID, classID string) (*models.WaitlistEntryDetail, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.Status != models.ClassStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class is not open for waitlisting")
	}
	if class.StartTime.Before(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class has already started")
	}
	if class.EnrolledCount < class.MaxCapacity {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class still has open seats")
	}

	waiting, err := s.repo.ExistsWaiting(ctx, studentID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check waitlist")
	}
	if waiting {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already on the waitlist for this class")
	}

	entry := &models.WaitlistEntry{
		ID:        uuid.NewString(),
		ClassID:   classID,
		StudentID: studentID,
		Status:    models.WaitlistStatusWaiting,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join waitlist")
	}

	position, err := s.repo.Position(ctx, entry)
	if err != nil {
		s.logger.Warn("failed to compute waitlist position", zap.String("entry_id", entry.ID), zap.Error(err))
		position = 0
	}
	return &models.WaitlistEntryDetail{WaitlistEntry: *entry, Position: position}, nil
}

// Leave cancels the student's waiting entry.
func (s *WaitlistService) Leave(ctx context.Context, entryID, actorID string, actorRole models.UserRole) error {
	entry, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if actorRole == models.RoleStudent && entry.StudentID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot remove another student's waitlist entry")
	}
	if entry.Status != models.WaitlistStatusWaiting {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "waitlist entry is no longer waiting")
	}

	if err := s.repo.UpdateStatus(ctx, entryID, models.WaitlistStatusCancelled, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel waitlist entry")
	}
	return nil
}

// ListByClass returns the queue for a class with computed positions.
func (s *WaitlistService) ListByClass(ctx context.Context, classID string) ([]models.WaitlistEntryDetail, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	entries, err := s.repo.ListWaitingByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	return entries, nil
}

// ListByStudent returns the student's waiting entries with positions.
func (s *WaitlistService) ListByStudent(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error) {
	entries, err := s.repo.ListWaitingByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist entries")
	}
	return entries, nil
}

// PromoteNext moves the oldest waiting student into a freed seat. Promotion is
// best effort: failures are logged, never surfaced to the releasing caller.
func (s *WaitlistService) PromoteNext(ctx context.Context, classID string) {
	entry, err := s.repo.FindNextWaiting(ctx, classID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("failed to find next waitlist entry", zap.String("class_id", classID), zap.Error(err))
		}
		return
	}

	seated, err := s.classes.AdjustEnrolledCount(ctx, classID, 1)
	if err != nil {
		s.logger.Error("failed to reserve seat for promotion", zap.String("class_id", classID), zap.Error(err))
		return
	}
	if !seated {
		// Seat got taken again before promotion could claim it.
		return
	}

	booking := &models.Booking{
		ID:        uuid.NewString(),
		StudentID: entry.StudentID,
		ClassID:   classID,
		Status:    models.BookingStatusPending,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		s.logger.Error("failed to create promotion booking", zap.String("entry_id", entry.ID), zap.Error(err))
		if _, rollbackErr := s.classes.AdjustEnrolledCount(ctx, classID, -1); rollbackErr != nil {
			s.logger.Error("failed to release seat after promotion failure",
				zap.String("class_id", classID), zap.Error(rollbackErr))
		}
		return
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, entry.ID, models.WaitlistStatusPromoted, &now); err != nil {
		s.logger.Error("failed to mark waitlist entry promoted", zap.String("entry_id", entry.ID), zap.Error(err))
	}

	if detail, err := s.bookings.FindDetailByID(ctx, booking.ID); err == nil && s.notifier != nil {
		s.notifier.NotifyWaitlistPromoted(ctx, detail)
	}

	s.logger.Info("waitlist entry promoted",
		zap.String("entry_id", entry.ID),
		zap.String("class_id", classID),
		zap.String("student_id", entry.StudentID))
}

// ExpireStale marks waiting entries older than the configured TTL as expired.
func (s *WaitlistService) ExpireStale(ctx context.Context) (int64, error) {
	if s.entryTTL <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-s.entryTTL)
	expired, err := s.repo.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire waitlist entries")
	}
	if expired > 0 {
		s.logger.Info("expired stale waitlist entries", zap.Int64("count", expired))
	}
	return expired, nil
}
