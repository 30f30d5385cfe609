package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type mockBookingRepo struct {
	booking       *models.Booking
	detail        *models.BookingDetail
	nearby        []models.BookingDetail
	existsActive  bool
	created       []*models.Booking
	statusUpdates map[string]models.BookingStatus
}

func (m *mockBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	return nil, 0, nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	return m.booking, nil
}

func (m *mockBookingRepo) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	if m.detail != nil {
		return m.detail, nil
	}
	return &models.BookingDetail{Booking: models.Booking{ID: id}}, nil
}

func (m *mockBookingRepo) ExistsActive(ctx context.Context, studentID, classID string) (bool, error) {
	return m.existsActive, nil
}

func (m *mockBookingRepo) ListActiveNear(ctx context.Context, studentID string, start time.Time, window time.Duration) ([]models.BookingDetail, error) {
	return m.nearby, nil
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	m.created = append(m.created, booking)
	return nil
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id string, status models.BookingStatus, at time.Time) error {
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[string]models.BookingStatus)
	}
	m.statusUpdates[id] = status
	return nil
}

type mockClassRepo struct {
	class       *models.Class
	classes     map[string]*models.Class
	seatFree    bool
	adjustments []int
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	if m.class == nil {
		return nil, sql.ErrNoRows
	}
	return m.class, nil
}

func (m *mockClassRepo) AdjustEnrolledCount(ctx context.Context, id string, delta int) (bool, error) {
	m.adjustments = append(m.adjustments, delta)
	if delta > 0 {
		return m.seatFree, nil
	}
	return true, nil
}

type mockCourseRepo struct {
	course *models.Course
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return m.course, nil
}

type mockStudentRepo struct {
	user      *models.User
	auditLogs []*models.AuditLog
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.user, nil
}

func (m *mockStudentRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockWaitlister struct {
	entry    *models.WaitlistEntryDetail
	joined   []string
	promoted []string
}

func (m *mockWaitlister) Join(ctx context.Context, studentID, classID string) (*models.WaitlistEntryDetail, error) {
	m.joined = append(m.joined, classID)
	return m.entry, nil
}

func (m *mockWaitlister) PromoteNext(ctx context.Context, classID string) {
	m.promoted = append(m.promoted, classID)
}

type mockBookingNotifier struct {
	confirmed   int
	cancelled   int
	rescheduled int
}

func (m *mockBookingNotifier) NotifyBookingConfirmed(ctx context.Context, booking *models.BookingDetail) {
	m.confirmed++
}

func (m *mockBookingNotifier) NotifyBookingCancelled(ctx context.Context, booking *models.BookingDetail) {
	m.cancelled++
}

func (m *mockBookingNotifier) NotifyBookingRescheduled(ctx context.Context, booking *models.BookingDetail) {
	m.rescheduled++
}

type mockPolicy struct {
	window      time.Duration
	threshold   float64
	autoPromote bool
}

func (m *mockPolicy) DuplicateWindow(ctx context.Context) time.Duration { return m.window }
func (m *mockPolicy) SimilarityThreshold(ctx context.Context) float64   { return m.threshold }
func (m *mockPolicy) WaitlistAutoPromote(ctx context.Context) bool      { return m.autoPromote }

func newBookingFixture() (*mockBookingRepo, *mockClassRepo, *mockCourseRepo, *mockStudentRepo, *mockWaitlister, *mockBookingNotifier, *mockPolicy) {
	classID := uuid.NewString()
	repo := &mockBookingRepo{}
	classes := &mockClassRepo{
		class: &models.Class{
			ID:          classID,
			CourseID:    uuid.NewString(),
			Status:      models.ClassStatusScheduled,
			StartTime:   time.Now().UTC().Add(48 * time.Hour),
			EndTime:     time.Now().UTC().Add(49 * time.Hour),
			MaxCapacity: 6,
		},
		seatFree: true,
	}
	courses := &mockCourseRepo{course: &models.Course{ID: classes.class.CourseID, Title: "Algebra Basics", Active: true}}
	users := &mockStudentRepo{user: &models.User{ID: uuid.NewString(), Role: models.RoleStudent, Active: true}}
	waitlist := &mockWaitlister{entry: &models.WaitlistEntryDetail{
		WaitlistEntry: models.WaitlistEntry{ID: uuid.NewString(), ClassID: classID, Status: models.WaitlistStatusWaiting},
		Position:      1,
	}}
	notifier := &mockBookingNotifier{}
	policy := &mockPolicy{window: 30 * time.Minute, threshold: 0.85, autoPromote: true}
	return repo, classes, courses, users, waitlist, notifier, policy
}

func TestBookingServiceCreateSeatsStudent(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	res, err := svc.Create(context.Background(), users.user.ID,
		CreateBookingRequest{ClassID: classes.class.ID}, models.LoginRequest{})
	require.NoError(t, err)
	require.NotNil(t, res.Booking)
	assert.Nil(t, res.WaitlistEntry)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.BookingStatusPending, repo.created[0].Status)
	assert.Equal(t, []int{1}, classes.adjustments)
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionBookingCreate, users.auditLogs[0].Action)
}

func TestBookingServiceCreateRejectsDuplicate(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	repo.nearby = []models.BookingDetail{{
		Booking:     models.Booking{ID: uuid.NewString(), Status: models.BookingStatusConfirmed},
		CourseTitle: "Algebra Basic",
	}}
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), users.user.ID,
		CreateBookingRequest{ClassID: classes.class.ID}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateBooking.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
	assert.Empty(t, classes.adjustments)
}

func TestBookingServiceCreateForceSkipsDuplicateGuard(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	repo.nearby = []models.BookingDetail{{
		Booking:     models.Booking{ID: uuid.NewString(), Status: models.BookingStatusConfirmed},
		CourseTitle: "Algebra Basics",
	}}
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	res, err := svc.Create(context.Background(), users.user.ID,
		CreateBookingRequest{ClassID: classes.class.ID, Force: true}, models.LoginRequest{})
	require.NoError(t, err)
	assert.NotNil(t, res.Booking)
}

func TestBookingServiceCreateFullClassJoinsWaitlist(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	classes.seatFree = false
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	res, err := svc.Create(context.Background(), users.user.ID,
		CreateBookingRequest{ClassID: classes.class.ID}, models.LoginRequest{})
	require.NoError(t, err)
	assert.Nil(t, res.Booking)
	require.NotNil(t, res.WaitlistEntry)
	assert.Equal(t, 1, res.WaitlistEntry.Position)
	assert.Equal(t, []string{classes.class.ID}, waitlist.joined)
	assert.Empty(t, repo.created)
}

func TestBookingServiceCreateRejectsExistingSeat(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	repo.existsActive = true
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), users.user.ID,
		CreateBookingRequest{ClassID: classes.class.ID}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceCancelReleasesSeatAndPromotes(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	repo.booking = &models.Booking{
		ID:        uuid.NewString(),
		StudentID: users.user.ID,
		ClassID:   classes.class.ID,
		Status:    models.BookingStatusConfirmed,
	}
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	err := svc.Cancel(context.Background(), repo.booking.ID, users.user.ID, models.RoleStudent, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, repo.statusUpdates[repo.booking.ID])
	assert.Equal(t, []int{-1}, classes.adjustments)
	assert.Equal(t, []string{classes.class.ID}, waitlist.promoted)
	assert.Equal(t, 1, notifier.cancelled)
}

func TestBookingServiceCancelOtherStudentForbidden(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	repo.booking = &models.Booking{
		ID:        uuid.NewString(),
		StudentID: uuid.NewString(),
		ClassID:   classes.class.ID,
		Status:    models.BookingStatusConfirmed,
	}
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	err := svc.Cancel(context.Background(), repo.booking.ID, users.user.ID, models.RoleStudent, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.statusUpdates)
}

func TestBookingServiceConfirmRequiresPending(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	repo.booking = &models.Booking{ID: uuid.NewString(), Status: models.BookingStatusCancelled}
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	_, err := svc.Confirm(context.Background(), repo.booking.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceRescheduleRejectsCrossCourse(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	origin := &models.Class{
		ID:       uuid.NewString(),
		CourseID: uuid.NewString(),
		Status:   models.ClassStatusScheduled,
	}
	target := &models.Class{
		ID:        uuid.NewString(),
		CourseID:  uuid.NewString(),
		Status:    models.ClassStatusScheduled,
		StartTime: time.Now().UTC().Add(24 * time.Hour),
	}
	classes.classes = map[string]*models.Class{origin.ID: origin, target.ID: target}
	repo.booking = &models.Booking{
		ID:        uuid.NewString(),
		StudentID: users.user.ID,
		ClassID:   origin.ID,
		Status:    models.BookingStatusConfirmed,
	}
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	_, err := svc.Reschedule(context.Background(), repo.booking.ID, users.user.ID, models.RoleStudent,
		RescheduleBookingRequest{TargetClassID: target.ID}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
	assert.Empty(t, classes.adjustments)
}

func TestBookingServiceCompleteBeforeClassEndRejected(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	repo.booking = &models.Booking{
		ID:        uuid.NewString(),
		StudentID: users.user.ID,
		ClassID:   classes.class.ID,
		Status:    models.BookingStatusConfirmed,
	}
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	err := svc.Complete(context.Background(), repo.booking.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	err = svc.MarkNoShow(context.Background(), repo.booking.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.statusUpdates)
}

func TestBookingServiceCompleteAfterClassEnd(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	classes.class.StartTime = time.Now().UTC().Add(-2 * time.Hour)
	classes.class.EndTime = time.Now().UTC().Add(-time.Hour)
	repo.booking = &models.Booking{
		ID:        uuid.NewString(),
		StudentID: users.user.ID,
		ClassID:   classes.class.ID,
		Status:    models.BookingStatusConfirmed,
	}
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	err := svc.Complete(context.Background(), repo.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, repo.statusUpdates[repo.booking.ID])
}

func TestBookingServiceRescheduleLinksReplacement(t *testing.T) {
	repo, classes, courses, users, waitlist, notifier, policy := newBookingFixture()
	repo.booking = &models.Booking{
		ID:        uuid.NewString(),
		StudentID: users.user.ID,
		ClassID:   uuid.NewString(),
		Status:    models.BookingStatusConfirmed,
	}
	svc := NewBookingService(repo, classes, courses, users, waitlist, notifier, policy, validator.New(), zap.NewNop())

	res, err := svc.Reschedule(context.Background(), repo.booking.ID, users.user.ID, models.RoleStudent,
		RescheduleBookingRequest{TargetClassID: classes.class.ID}, models.LoginRequest{})
	require.NoError(t, err)
	require.NotNil(t, res.Booking)
	assert.Equal(t, models.BookingStatusRescheduled, repo.statusUpdates[repo.booking.ID])
	require.Len(t, repo.created, 1)
	require.NotNil(t, repo.created[0].RescheduledFrom)
	assert.Equal(t, repo.booking.ID, *repo.created[0].RescheduledFrom)
	assert.Equal(t, []int{1, -1}, classes.adjustments)
	assert.Equal(t, []string{repo.booking.ClassID}, waitlist.promoted)
	assert.Equal(t, 1, notifier.rescheduled)
}
