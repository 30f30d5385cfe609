package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

type mockMaintenanceBookingRepo struct {
	overdue       []models.BookingDetail
	statusUpdates map[string]models.BookingStatus
}

func (m *mockMaintenanceBookingRepo) ListOverdue(ctx context.Context, cutoff time.Time) ([]models.BookingDetail, error) {
	return m.overdue, nil
}

func (m *mockMaintenanceBookingRepo) UpdateStatus(ctx context.Context, id string, status models.BookingStatus, at time.Time) error {
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[string]models.BookingStatus)
	}
	m.statusUpdates[id] = status
	return nil
}

type mockMaintenanceClassRepo struct {
	ended  []models.Class
	closed []string
}

func (m *mockMaintenanceClassRepo) ListEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Class, error) {
	return m.ended, nil
}

func (m *mockMaintenanceClassRepo) UpdateStatus(ctx context.Context, id string, status models.ClassStatus) error {
	m.closed = append(m.closed, id)
	return nil
}

type mockExpirer struct{ expired int64 }

func (m *mockExpirer) ExpireStale(ctx context.Context) (int64, error) { return m.expired, nil }

type mockSessionPurger struct{ purged int64 }

func (m *mockSessionPurger) PurgeExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.purged, nil
}

type mockNotificationPurger struct{ purged int64 }

func (m *mockNotificationPurger) PurgeReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.purged, nil
}

type mockExportCleaner struct{ removed int }

func (m *mockExportCleaner) Cleanup(ctx context.Context) (int, error) { return m.removed, nil }

type mockInvalidator struct{ calls int }

func (m *mockInvalidator) Invalidate(ctx context.Context) { m.calls++ }

func TestMaintenanceSweepSettlesOverdueBookings(t *testing.T) {
	now := time.Now().UTC()
	confirmedOld := models.BookingDetail{
		Booking:      models.Booking{ID: uuid.NewString(), Status: models.BookingStatusConfirmed},
		ClassEndTime: now.Add(-3 * time.Hour),
	}
	confirmedRecent := models.BookingDetail{
		Booking:      models.Booking{ID: uuid.NewString(), Status: models.BookingStatusConfirmed},
		ClassEndTime: now.Add(-10 * time.Minute),
	}
	pending := models.BookingDetail{
		Booking:      models.Booking{ID: uuid.NewString(), Status: models.BookingStatusPending},
		ClassEndTime: now.Add(-10 * time.Minute),
	}

	bookings := &mockMaintenanceBookingRepo{overdue: []models.BookingDetail{confirmedOld, confirmedRecent, pending}}
	classes := &mockMaintenanceClassRepo{ended: []models.Class{{ID: uuid.NewString()}}}
	invalidator := &mockInvalidator{}
	svc := NewMaintenanceService(bookings, classes, &mockExpirer{}, &mockSessionPurger{},
		&mockNotificationPurger{}, &mockExportCleaner{}, invalidator,
		MaintenanceConfig{CompletionGrace: 2 * time.Hour}, zap.NewNop())

	svc.Sweep(context.Background())

	assert.Equal(t, models.BookingStatusCompleted, bookings.statusUpdates[confirmedOld.ID])
	assert.Equal(t, models.BookingStatusNoShow, bookings.statusUpdates[pending.ID])
	// Confirmed bookings inside the grace period stay untouched.
	assert.NotContains(t, bookings.statusUpdates, confirmedRecent.ID)
	assert.Len(t, classes.closed, 1)
	assert.Equal(t, 1, invalidator.calls)
}

func TestMaintenanceSweepIdleWhenNothingOverdue(t *testing.T) {
	bookings := &mockMaintenanceBookingRepo{}
	classes := &mockMaintenanceClassRepo{}
	invalidator := &mockInvalidator{}
	svc := NewMaintenanceService(bookings, classes, &mockExpirer{}, &mockSessionPurger{},
		&mockNotificationPurger{}, &mockExportCleaner{}, invalidator,
		MaintenanceConfig{}, zap.NewNop())

	svc.Sweep(context.Background())

	assert.Empty(t, bookings.statusUpdates)
	assert.Empty(t, classes.closed)
	assert.Zero(t, invalidator.calls)
}
