package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error)
	ExistsActive(ctx context.Context, studentID, classID string) (bool, error)
	ListActiveNear(ctx context.Context, studentID string, start time.Time, window time.Duration) ([]models.BookingDetail, error)
	Create(ctx context.Context, booking *models.Booking) error
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus, at time.Time) error
}

type bookingClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	AdjustEnrolledCount(ctx context.Context, id string, delta int) (bool, error)
}

type bookingCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type bookingStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type bookingWaitlister interface {
	Join(ctx context.Context, studentID, classID string) (*models.WaitlistEntryDetail, error)
	PromoteNext(ctx context.Context, classID string)
}

type bookingNotifier interface {
	NotifyBookingConfirmed(ctx context.Context, booking *models.BookingDetail)
	NotifyBookingCancelled(ctx context.Context, booking *models.BookingDetail)
	NotifyBookingRescheduled(ctx context.Context, booking *models.BookingDetail)
}

type bookingPolicy interface {
	DuplicateWindow(ctx context.Context) time.Duration
	SimilarityThreshold(ctx context.Context) float64
	WaitlistAutoPromote(ctx context.Context) bool
}

// CreateBookingRequest represents payload for booking a class seat.
type CreateBookingRequest struct {
	ClassID string `json:"class_id" validate:"required,uuid4"`
	// Force skips the duplicate heuristic, not the capacity check.
	Force bool `json:"force"`
}

// RescheduleBookingRequest moves a booking to another class session.
type RescheduleBookingRequest struct {
	TargetClassID string `json:"target_class_id" validate:"required,uuid4"`
}

// BookingResult is returned from Create. Exactly one of Booking and
// WaitlistEntry is set: a full class lands the student on the waitlist.
type BookingResult struct {
	Booking       *models.BookingDetail       `json:"booking,omitempty"`
	WaitlistEntry *models.WaitlistEntryDetail `json:"waitlist_entry,omitempty"`
}

// BookingService implements the booking lifecycle and duplicate guard.
type BookingService struct {
	repo      bookingRepository
	classes   bookingClassRepository
	courses   bookingCourseRepository
	users     bookingStudentRepository
	waitlist  bookingWaitlister
	notifier  bookingNotifier
	policy    bookingPolicy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService creates an instance of BookingService.
func NewBookingService(repo bookingRepository, classes bookingClassRepository, courses bookingCourseRepository,
	users bookingStudentRepository, waitlist bookingWaitlister, notifier bookingNotifier, policy bookingPolicy,
	validate *validator.Validate, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BookingService{
		repo:      repo,
		classes:   classes,
		courses:   courses,
		users:     users,
		waitlist:  waitlist,
		notifier:  notifier,
		policy:    policy,
		validator: validate,
		logger:    logger,
	}
}

// List returns paginated bookings and pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return bookings, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a booking with its class and course context.
func (s *BookingService) Get(ctx context.Context, id string) (*models.BookingDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return detail, nil
}

// Create books a seat for the student. A full class parks the student on the
// waitlist instead; a likely duplicate is rejected unless forced.
func (s *BookingService) Create(ctx context.Context, studentID string, req CreateBookingRequest, meta models.LoginRequest) (*BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create booking payload")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent || !student.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only active students can book classes")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.Status != models.ClassStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class is not open for booking")
	}
	if class.StartTime.Before(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class has already started")
	}

	alreadyBooked, err := s.repo.ExistsActive(ctx, studentID, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing booking")
	}
	if alreadyBooked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already holds a seat in this class")
	}

	course, err := s.courses.FindByID(ctx, class.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if !req.Force {
		if err := s.checkDuplicate(ctx, studentID, class, course); err != nil {
			return nil, err
		}
	}

	seated, err := s.classes.AdjustEnrolledCount(ctx, class.ID, 1)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve seat")
	}
	if !seated {
		if s.waitlist == nil {
			return nil, appErrors.Clone(appErrors.ErrClassFull, "")
		}
		entry, err := s.waitlist.Join(ctx, studentID, class.ID)
		if err != nil {
			return nil, err
		}
		return &BookingResult{WaitlistEntry: entry}, nil
	}

	booking := &models.Booking{
		ID:        uuid.NewString(),
		StudentID: studentID,
		ClassID:   class.ID,
		Status:    models.BookingStatusPending,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		if _, rollbackErr := s.classes.AdjustEnrolledCount(ctx, class.ID, -1); rollbackErr != nil {
			s.logger.Error("failed to release seat after booking failure",
				zap.String("class_id", class.ID), zap.Error(rollbackErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}

	s.audit(ctx, studentID, models.AuditActionBookingCreate, booking.ID, meta)

	detail, err := s.repo.FindDetailByID(ctx, booking.ID)
	if err != nil {
		s.logger.Warn("failed to load created booking detail", zap.String("booking_id", booking.ID), zap.Error(err))
		detail = &models.BookingDetail{Booking: *booking}
	}
	return &BookingResult{Booking: detail}, nil
}

// Confirm transitions a pending booking to confirmed and notifies the student.
func (s *BookingService) Confirm(ctx context.Context, id string) (*models.BookingDetail, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot confirm a %s booking", booking.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, models.BookingStatusConfirmed, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm booking")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if s.notifier != nil {
		s.notifier.NotifyBookingConfirmed(ctx, detail)
	}
	return detail, nil
}

// Cancel releases the booking's seat and promotes the next waitlisted student.
// Students may cancel their own bookings; staff can cancel any.
func (s *BookingService) Cancel(ctx context.Context, id, actorID string, actorRole models.UserRole, meta models.LoginRequest) error {
	booking, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if actorRole == models.RoleStudent && booking.StudentID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot cancel another student's booking")
	}
	if !isActiveBooking(booking.Status) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot cancel a %s booking", booking.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, models.BookingStatusCancelled, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	s.releaseSeat(ctx, booking.ClassID)

	s.audit(ctx, actorID, models.AuditActionBookingCancel, id, meta)

	if detail, err := s.repo.FindDetailByID(ctx, id); err == nil && s.notifier != nil {
		s.notifier.NotifyBookingCancelled(ctx, detail)
	}

	if s.waitlist != nil && s.policy.WaitlistAutoPromote(ctx) {
		s.waitlist.PromoteNext(ctx, booking.ClassID)
	}
	return nil
}

// Complete marks an active booking as completed, consuming student hours.
func (s *BookingService) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, models.BookingStatusCompleted)
}

// MarkNoShow marks an active booking as a no-show.
func (s *BookingService) MarkNoShow(ctx context.Context, id string) error {
	return s.finish(ctx, id, models.BookingStatusNoShow)
}

// Reschedule moves an active booking onto another class session. The original
// booking keeps its seat released and is linked from the replacement.
func (s *BookingService) Reschedule(ctx context.Context, id, actorID string, actorRole models.UserRole, req RescheduleBookingRequest, meta models.LoginRequest) (*BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole == models.RoleStudent && booking.StudentID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot reschedule another student's booking")
	}
	if !isActiveBooking(booking.Status) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot reschedule a %s booking", booking.Status))
	}
	if booking.ClassID == req.TargetClassID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking already targets this class")
	}

	origin, err := s.classes.FindByID(ctx, booking.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked class")
	}

	target, err := s.classes.FindByID(ctx, req.TargetClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target class")
	}
	if target.Status != models.ClassStatusScheduled || target.StartTime.Before(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "target class is not open for booking")
	}
	// A reschedule swaps sessions, not courses.
	if target.CourseID != origin.CourseID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "target class belongs to a different course")
	}

	seated, err := s.classes.AdjustEnrolledCount(ctx, target.ID, 1)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve seat")
	}
	if !seated {
		return nil, appErrors.Clone(appErrors.ErrClassFull, "target class is at capacity")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.BookingStatusRescheduled, now); err != nil {
		if _, rollbackErr := s.classes.AdjustEnrolledCount(ctx, target.ID, -1); rollbackErr != nil {
			s.logger.Error("failed to release seat after reschedule failure",
				zap.String("class_id", target.ID), zap.Error(rollbackErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire booking")
	}
	s.releaseSeat(ctx, booking.ClassID)

	replacement := &models.Booking{
		ID:              uuid.NewString(),
		StudentID:       booking.StudentID,
		ClassID:         target.ID,
		Status:          models.BookingStatusPending,
		RescheduledFrom: &booking.ID,
	}
	if err := s.repo.Create(ctx, replacement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create replacement booking")
	}

	s.audit(ctx, actorID, models.AuditActionBookingCreate, replacement.ID, meta)

	if s.waitlist != nil && s.policy.WaitlistAutoPromote(ctx) {
		s.waitlist.PromoteNext(ctx, booking.ClassID)
	}

	detail, err := s.repo.FindDetailByID(ctx, replacement.ID)
	if err != nil {
		detail = &models.BookingDetail{Booking: *replacement}
	}
	if s.notifier != nil {
		s.notifier.NotifyBookingRescheduled(ctx, detail)
	}
	return &BookingResult{Booking: detail}, nil
}

// checkDuplicate applies the similar-booking heuristic: an active booking for
// the same student whose class starts inside the configured window and whose
// course title is close enough counts as a duplicate.
func (s *BookingService) checkDuplicate(ctx context.Context, studentID string, class *models.Class, course *models.Course) error {
	window := s.policy.DuplicateWindow(ctx)
	if window <= 0 {
		return nil
	}
	threshold := s.policy.SimilarityThreshold(ctx)

	nearby, err := s.repo.ListActiveNear(ctx, studentID, class.StartTime, window)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check for duplicates")
	}
	for _, existing := range nearby {
		score := titleSimilarity(course.Title, existing.CourseTitle)
		if score >= threshold {
			s.logger.Info("duplicate booking rejected",
				zap.String("student_id", studentID),
				zap.String("existing_booking_id", existing.ID),
				zap.Float64("similarity", score))
			return appErrors.Clone(appErrors.ErrDuplicateBooking,
				fmt.Sprintf("a similar booking for %q already exists near this time", existing.CourseTitle))
		}
	}
	return nil
}

func (s *BookingService) finish(ctx context.Context, id string, status models.BookingStatus) error {
	booking, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !isActiveBooking(booking.Status) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot mark a %s booking as %s", booking.Status, status))
	}
	class, err := s.classes.FindByID(ctx, booking.ClassID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked class")
	}
	if time.Now().UTC().Before(class.EndTime) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class has not ended yet")
	}
	if err := s.repo.UpdateStatus(ctx, id, status, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking status")
	}
	return nil
}

func (s *BookingService) load(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

func (s *BookingService) releaseSeat(ctx context.Context, classID string) {
	if _, err := s.classes.AdjustEnrolledCount(ctx, classID, -1); err != nil {
		s.logger.Error("failed to release seat", zap.String("class_id", classID), zap.Error(err))
	}
}

func (s *BookingService) audit(ctx context.Context, actorID, action, bookingID string, meta models.LoginRequest) {
	log := &models.AuditLog{
		Action:     action,
		Resource:   "bookings",
		ResourceID: &bookingID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.users.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record booking audit log", zap.Error(err))
	}
}

func isActiveBooking(status models.BookingStatus) bool {
	for _, active := range models.ActiveBookingStatuses {
		if status == active {
			return true
		}
	}
	return false
}
