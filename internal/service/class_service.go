package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	UpdateStatus(ctx context.Context, id string, status models.ClassStatus) error
}

type classCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type classAvailabilityRepository interface {
	ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error)
	HasBlackout(ctx context.Context, teacherID string, day time.Time) (bool, error)
}

type classBookingRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.BookingDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus, at time.Time) error
}

type classWaitlistRepository interface {
	ListWaitingByClass(ctx context.Context, classID string) ([]models.WaitlistEntryDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus, promotedAt *time.Time) error
}

type classNotifier interface {
	NotifyClassCancelled(ctx context.Context, booking *models.BookingDetail)
}

// CreateClassRequest represents payload for scheduling a class.
type CreateClassRequest struct {
	CourseID    string    `json:"course_id" validate:"required,uuid4"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	MaxCapacity int       `json:"max_capacity" validate:"required,gt=0"`
}

// UpdateClassRequest payload for rescheduling a class.
type UpdateClassRequest struct {
	StartTime   time.Time `json:"start_time" validate:"required"`
	MaxCapacity int       `json:"max_capacity" validate:"required,gt=0"`
}

// ClassService manages scheduled class sessions.
type ClassService struct {
	repo         classRepository
	courses      classCourseRepository
	availability classAvailabilityRepository
	bookings     classBookingRepository
	waitlist     classWaitlistRepository
	notifier     classNotifier
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewClassService creates an instance of ClassService.
func NewClassService(repo classRepository, courses classCourseRepository, availability classAvailabilityRepository,
	bookings classBookingRepository, waitlist classWaitlistRepository, notifier classNotifier,
	validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{
		repo:         repo,
		courses:      courses,
		availability: availability,
		bookings:     bookings,
		waitlist:     waitlist,
		notifier:     notifier,
		validator:    validate,
		logger:       logger,
	}
}

// List returns paginated classes and pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return classes, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a class with course and teacher context.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return detail, nil
}

// Roster returns the active bookings for a class.
func (s *ClassService) Roster(ctx context.Context, id string) ([]models.BookingDetail, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	roster, err := s.bookings.ListByClass(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}

// Create schedules a new class session for a course. The session must land
// inside the course teacher's weekly availability and outside blackouts.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create class payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is inactive")
	}

	start := req.StartTime.UTC()
	if start.Before(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class must start in the future")
	}
	end := start.Add(time.Duration(course.DurationMinutes) * time.Minute)

	if err := s.checkAvailability(ctx, course.TeacherID, start, end); err != nil {
		return nil, err
	}

	class := &models.Class{
		ID:          uuid.NewString(),
		CourseID:    course.ID,
		TeacherID:   course.TeacherID,
		StartTime:   start,
		EndTime:     end,
		MaxCapacity: req.MaxCapacity,
		Status:      models.ClassStatusScheduled,
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update reschedules a class. Capacity may not drop below current enrollment.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update class payload")
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.Status != models.ClassStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only scheduled classes can be updated")
	}
	if req.MaxCapacity < class.EnrolledCount {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "capacity cannot drop below current enrollment")
	}

	course, err := s.courses.FindByID(ctx, class.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	start := req.StartTime.UTC()
	end := start.Add(time.Duration(course.DurationMinutes) * time.Minute)
	if err := s.checkAvailability(ctx, class.TeacherID, start, end); err != nil {
		return nil, err
	}

	class.StartTime = start
	class.EndTime = end
	class.MaxCapacity = req.MaxCapacity

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Cancel cancels a class, cascading to its active bookings and waitlist.
func (s *ClassService) Cancel(ctx context.Context, id string) error {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.Status != models.ClassStatusScheduled {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class is not scheduled")
	}

	if err := s.repo.UpdateStatus(ctx, id, models.ClassStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel class")
	}

	now := time.Now().UTC()

	roster, err := s.bookings.ListByClass(ctx, id)
	if err != nil {
		s.logger.Error("failed to load roster for cancelled class", zap.String("class_id", id), zap.Error(err))
	}
	for i := range roster {
		booking := roster[i]
		if err := s.bookings.UpdateStatus(ctx, booking.ID, models.BookingStatusCancelled, now); err != nil {
			s.logger.Error("failed to cancel booking for cancelled class",
				zap.String("booking_id", booking.ID), zap.Error(err))
			continue
		}
		if s.notifier != nil {
			s.notifier.NotifyClassCancelled(ctx, &booking)
		}
	}

	waiting, err := s.waitlist.ListWaitingByClass(ctx, id)
	if err != nil {
		s.logger.Error("failed to load waitlist for cancelled class", zap.String("class_id", id), zap.Error(err))
	}
	for _, entry := range waiting {
		if err := s.waitlist.UpdateStatus(ctx, entry.ID, models.WaitlistStatusCancelled, nil); err != nil {
			s.logger.Error("failed to cancel waitlist entry for cancelled class",
				zap.String("entry_id", entry.ID), zap.Error(err))
		}
	}

	return nil
}

func (s *ClassService) checkAvailability(ctx context.Context, teacherID string, start, end time.Time) error {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	blocked, err := s.availability.HasBlackout(ctx, teacherID, day)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check blackouts")
	}
	if blocked {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher is unavailable on that date")
	}

	windows, err := s.availability.ListWindows(ctx, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if len(windows) == 0 {
		// Teachers without declared windows accept any slot.
		return nil
	}

	startMinutes := start.Hour()*60 + start.Minute()
	endMinutes := startMinutes + int(end.Sub(start).Minutes())
	weekday := models.Weekday(start.Weekday())
	for _, window := range windows {
		if window.DayOfWeek == weekday && startMinutes >= window.StartMinutes && endMinutes <= window.EndMinutes {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrPreconditionFailed, "class falls outside teacher availability")
}
