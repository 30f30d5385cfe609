package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type mockWaitlistRepo struct {
	entry         *models.WaitlistEntry
	next          *models.WaitlistEntry
	existsWaiting bool
	position      int
	created       []*models.WaitlistEntry
	statusUpdates map[string]models.WaitlistStatus
	expired       int64
}

func (m *mockWaitlistRepo) Create(ctx context.Context, entry *models.WaitlistEntry) error {
	m.created = append(m.created, entry)
	return nil
}

func (m *mockWaitlistRepo) FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	if m.entry == nil {
		return nil, sql.ErrNoRows
	}
	return m.entry, nil
}

func (m *mockWaitlistRepo) ExistsWaiting(ctx context.Context, studentID, classID string) (bool, error) {
	return m.existsWaiting, nil
}

func (m *mockWaitlistRepo) ListWaitingByClass(ctx context.Context, classID string) ([]models.WaitlistEntryDetail, error) {
	return nil, nil
}

func (m *mockWaitlistRepo) ListWaitingByStudent(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error) {
	return nil, nil
}

func (m *mockWaitlistRepo) FindNextWaiting(ctx context.Context, classID string) (*models.WaitlistEntry, error) {
	if m.next == nil {
		return nil, sql.ErrNoRows
	}
	return m.next, nil
}

func (m *mockWaitlistRepo) Position(ctx context.Context, entry *models.WaitlistEntry) (int, error) {
	return m.position, nil
}

func (m *mockWaitlistRepo) UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus, promotedAt *time.Time) error {
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[string]models.WaitlistStatus)
	}
	m.statusUpdates[id] = status
	return nil
}

func (m *mockWaitlistRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.expired, nil
}

type mockWaitlistBookingRepo struct {
	created []*models.Booking
}

func (m *mockWaitlistBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	m.created = append(m.created, booking)
	return nil
}

func (m *mockWaitlistBookingRepo) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	return &models.BookingDetail{Booking: models.Booking{ID: id}}, nil
}

type mockWaitlistNotifier struct {
	promoted int
}

func (m *mockWaitlistNotifier) NotifyWaitlistPromoted(ctx context.Context, booking *models.BookingDetail) {
	m.promoted++
}

func fullClassRepo() *mockClassRepo {
	return &mockClassRepo{class: &models.Class{
		ID:            uuid.NewString(),
		Status:        models.ClassStatusScheduled,
		StartTime:     time.Now().UTC().Add(24 * time.Hour),
		MaxCapacity:   5,
		EnrolledCount: 5,
	}}
}

func TestWaitlistServiceJoinComputesPosition(t *testing.T) {
	repo := &mockWaitlistRepo{position: 3}
	classes := fullClassRepo()
	svc := NewWaitlistService(repo, classes, &mockWaitlistBookingRepo{}, &mockWaitlistNotifier{}, time.Hour, zap.NewNop())

	entry, err := svc.Join(context.Background(), uuid.NewString(), classes.class.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Position)
	assert.Equal(t, models.WaitlistStatusWaiting, entry.Status)
	require.Len(t, repo.created, 1)
}

func TestWaitlistServiceJoinRejectsDoubleEntry(t *testing.T) {
	repo := &mockWaitlistRepo{existsWaiting: true}
	classes := fullClassRepo()
	svc := NewWaitlistService(repo, classes, &mockWaitlistBookingRepo{}, &mockWaitlistNotifier{}, time.Hour, zap.NewNop())

	_, err := svc.Join(context.Background(), uuid.NewString(), classes.class.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestWaitlistServiceJoinUnknownClass(t *testing.T) {
	repo := &mockWaitlistRepo{}
	svc := NewWaitlistService(repo, &mockClassRepo{}, &mockWaitlistBookingRepo{}, &mockWaitlistNotifier{}, time.Hour, zap.NewNop())

	_, err := svc.Join(context.Background(), uuid.NewString(), uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestWaitlistServiceJoinRejectsOpenSeats(t *testing.T) {
	repo := &mockWaitlistRepo{}
	classes := fullClassRepo()
	classes.class.EnrolledCount = 3
	svc := NewWaitlistService(repo, classes, &mockWaitlistBookingRepo{}, &mockWaitlistNotifier{}, time.Hour, zap.NewNop())

	_, err := svc.Join(context.Background(), uuid.NewString(), classes.class.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestWaitlistServiceJoinRejectsStartedClass(t *testing.T) {
	repo := &mockWaitlistRepo{}
	classes := fullClassRepo()
	classes.class.StartTime = time.Now().UTC().Add(-time.Hour)
	svc := NewWaitlistService(repo, classes, &mockWaitlistBookingRepo{}, &mockWaitlistNotifier{}, time.Hour, zap.NewNop())

	_, err := svc.Join(context.Background(), uuid.NewString(), classes.class.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestWaitlistServicePromoteNextCreatesPendingBooking(t *testing.T) {
	classID := uuid.NewString()
	repo := &mockWaitlistRepo{next: &models.WaitlistEntry{
		ID:        uuid.NewString(),
		ClassID:   classID,
		StudentID: uuid.NewString(),
		Status:    models.WaitlistStatusWaiting,
	}}
	classes := &mockClassRepo{seatFree: true}
	bookings := &mockWaitlistBookingRepo{}
	notifier := &mockWaitlistNotifier{}
	svc := NewWaitlistService(repo, classes, bookings, notifier, time.Hour, zap.NewNop())

	svc.PromoteNext(context.Background(), classID)

	require.Len(t, bookings.created, 1)
	assert.Equal(t, models.BookingStatusPending, bookings.created[0].Status)
	assert.Equal(t, repo.next.StudentID, bookings.created[0].StudentID)
	assert.Equal(t, models.WaitlistStatusPromoted, repo.statusUpdates[repo.next.ID])
	assert.Equal(t, 1, notifier.promoted)
}

func TestWaitlistServicePromoteNextBacksOffWhenSeatTaken(t *testing.T) {
	classID := uuid.NewString()
	repo := &mockWaitlistRepo{next: &models.WaitlistEntry{
		ID:      uuid.NewString(),
		ClassID: classID,
		Status:  models.WaitlistStatusWaiting,
	}}
	classes := &mockClassRepo{seatFree: false}
	bookings := &mockWaitlistBookingRepo{}
	svc := NewWaitlistService(repo, classes, bookings, &mockWaitlistNotifier{}, time.Hour, zap.NewNop())

	svc.PromoteNext(context.Background(), classID)

	assert.Empty(t, bookings.created)
	assert.Empty(t, repo.statusUpdates)
}

func TestWaitlistServicePromoteNextEmptyQueueIsNoop(t *testing.T) {
	repo := &mockWaitlistRepo{}
	bookings := &mockWaitlistBookingRepo{}
	svc := NewWaitlistService(repo, &mockClassRepo{seatFree: true}, bookings, &mockWaitlistNotifier{}, time.Hour, zap.NewNop())

	svc.PromoteNext(context.Background(), uuid.NewString())

	assert.Empty(t, bookings.created)
}

func TestWaitlistServiceLeaveRequiresOwnership(t *testing.T) {
	repo := &mockWaitlistRepo{entry: &models.WaitlistEntry{
		ID:        uuid.NewString(),
		StudentID: uuid.NewString(),
		Status:    models.WaitlistStatusWaiting,
	}}
	svc := NewWaitlistService(repo, &mockClassRepo{}, &mockWaitlistBookingRepo{}, &mockWaitlistNotifier{}, time.Hour, zap.NewNop())

	err := svc.Leave(context.Background(), repo.entry.ID, uuid.NewString(), models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Leave(context.Background(), repo.entry.ID, repo.entry.StudentID, models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistStatusCancelled, repo.statusUpdates[repo.entry.ID])
}

func TestWaitlistServiceExpireStale(t *testing.T) {
	repo := &mockWaitlistRepo{expired: 4}
	svc := NewWaitlistService(repo, &mockClassRepo{}, &mockWaitlistBookingRepo{}, &mockWaitlistNotifier{}, time.Hour, zap.NewNop())

	expired, err := svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, expired)
}
