package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type mockFeedbackRepo struct {
	existing map[string]bool
	created  []*models.Feedback
}

func (m *mockFeedbackRepo) Create(ctx context.Context, feedback *models.Feedback) error {
	m.created = append(m.created, feedback)
	return nil
}

func (m *mockFeedbackRepo) ExistsForBooking(ctx context.Context, bookingID, authorID string) (bool, error) {
	return m.existing[bookingID+"/"+authorID], nil
}

func (m *mockFeedbackRepo) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]models.FeedbackDetail, error) {
	return nil, nil
}

func (m *mockFeedbackRepo) SummaryByTeacher(ctx context.Context, teacherID string) (*models.FeedbackSummary, error) {
	return &models.FeedbackSummary{SubjectID: teacherID}, nil
}

func (m *mockFeedbackRepo) SummaryByCourse(ctx context.Context, courseID string) (*models.FeedbackSummary, error) {
	return &models.FeedbackSummary{SubjectID: courseID}, nil
}

func feedbackFixture() (*mockBookingRepo, *mockClassRepo) {
	teacherID := uuid.NewString()
	classID := uuid.NewString()
	bookings := &mockBookingRepo{booking: &models.Booking{
		ID:        uuid.NewString(),
		StudentID: uuid.NewString(),
		ClassID:   classID,
		Status:    models.BookingStatusCompleted,
	}}
	classes := &mockClassRepo{class: &models.Class{
		ID:        classID,
		TeacherID: teacherID,
		EndTime:   time.Now().UTC().Add(-time.Hour),
	}}
	return bookings, classes
}

func TestFeedbackServiceCreateByStudent(t *testing.T) {
	repo := &mockFeedbackRepo{}
	bookings, classes := feedbackFixture()
	svc := NewFeedbackService(repo, bookings, classes, nil, zap.NewNop())

	feedback, err := svc.Create(context.Background(), bookings.booking.StudentID, CreateFeedbackRequest{
		BookingID: bookings.booking.ID,
		Rating:    5,
	})
	require.NoError(t, err)
	assert.Equal(t, bookings.booking.StudentID, feedback.AuthorID)
	require.Len(t, repo.created, 1)
}

func TestFeedbackServiceCreateByClassTeacher(t *testing.T) {
	repo := &mockFeedbackRepo{}
	bookings, classes := feedbackFixture()
	svc := NewFeedbackService(repo, bookings, classes, nil, zap.NewNop())

	feedback, err := svc.Create(context.Background(), classes.class.TeacherID, CreateFeedbackRequest{
		BookingID: bookings.booking.ID,
		Rating:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, classes.class.TeacherID, feedback.AuthorID)
	require.Len(t, repo.created, 1)
}

func TestFeedbackServiceCreateRejectsOutsider(t *testing.T) {
	repo := &mockFeedbackRepo{}
	bookings, classes := feedbackFixture()
	svc := NewFeedbackService(repo, bookings, classes, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), uuid.NewString(), CreateFeedbackRequest{
		BookingID: bookings.booking.ID,
		Rating:    3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestFeedbackServiceCreateOncePerAuthorSide(t *testing.T) {
	bookings, classes := feedbackFixture()
	repo := &mockFeedbackRepo{existing: map[string]bool{
		bookings.booking.ID + "/" + bookings.booking.StudentID: true,
	}}
	svc := NewFeedbackService(repo, bookings, classes, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), bookings.booking.StudentID, CreateFeedbackRequest{
		BookingID: bookings.booking.ID,
		Rating:    5,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// The student's entry must not block the teacher's side.
	feedback, err := svc.Create(context.Background(), classes.class.TeacherID, CreateFeedbackRequest{
		BookingID: bookings.booking.ID,
		Rating:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, classes.class.TeacherID, feedback.AuthorID)
}

func TestFeedbackServiceCreateRequiresCompletedBooking(t *testing.T) {
	repo := &mockFeedbackRepo{}
	bookings, classes := feedbackFixture()
	bookings.booking.Status = models.BookingStatusConfirmed
	svc := NewFeedbackService(repo, bookings, classes, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), bookings.booking.StudentID, CreateFeedbackRequest{
		BookingID: bookings.booking.ID,
		Rating:    5,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
