package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type feedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	ExistsForBooking(ctx context.Context, bookingID, authorID string) (bool, error)
	ListByTeacher(ctx context.Context, teacherID string, limit int) ([]models.FeedbackDetail, error)
	SummaryByTeacher(ctx context.Context, teacherID string) (*models.FeedbackSummary, error)
	SummaryByCourse(ctx context.Context, courseID string) (*models.FeedbackSummary, error)
}

type feedbackBookingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
}

type feedbackClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// CreateFeedbackRequest rates a completed booking.
type CreateFeedbackRequest struct {
	BookingID string  `json:"booking_id" validate:"required,uuid4"`
	Rating    int     `json:"rating" validate:"required,min=1,max=5"`
	Comment   *string `json:"comment"`
}

// FeedbackService collects post-class ratings. Each side of a booking, the
// student and the class teacher, may leave at most one rating.
type FeedbackService struct {
	repo      feedbackRepository
	bookings  feedbackBookingRepository
	classes   feedbackClassRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeedbackService creates an instance of FeedbackService.
func NewFeedbackService(repo feedbackRepository, bookings feedbackBookingRepository, classes feedbackClassRepository,
	validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FeedbackService{repo: repo, bookings: bookings, classes: classes, validator: validate, logger: logger}
}

// Create records feedback on a completed booking. The author must be the
// booking's student or the teacher of its class.
func (s *FeedbackService) Create(ctx context.Context, authorID string, req CreateFeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	booking, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if booking.StudentID != authorID {
		class, err := s.classes.FindByID(ctx, booking.ClassID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked class")
		}
		if class.TeacherID != authorID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the booking's student or teacher can rate it")
		}
	}
	if booking.Status != models.BookingStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only completed bookings can be rated")
	}

	exists, err := s.repo.ExistsForBooking(ctx, req.BookingID, authorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing feedback")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "author already rated this booking")
	}

	feedback := &models.Feedback{
		ID:        uuid.NewString(),
		BookingID: req.BookingID,
		AuthorID:  authorID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.repo.Create(ctx, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create feedback")
	}
	return feedback, nil
}

// ListByTeacher returns recent feedback on a teacher's classes.
func (s *FeedbackService) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]models.FeedbackDetail, error) {
	feedback, err := s.repo.ListByTeacher(ctx, teacherID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return feedback, nil
}

// TeacherSummary aggregates ratings for a teacher.
func (s *FeedbackService) TeacherSummary(ctx context.Context, teacherID string) (*models.FeedbackSummary, error) {
	summary, err := s.repo.SummaryByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise feedback")
	}
	return summary, nil
}

// CourseSummary aggregates ratings for a course.
func (s *FeedbackService) CourseSummary(ctx context.Context, courseID string) (*models.FeedbackSummary, error) {
	summary, err := s.repo.SummaryByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise feedback")
	}
	return summary, nil
}
