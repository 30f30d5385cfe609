package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

func newBookingMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func bookingDetailRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "student_id", "class_id", "status", "rescheduled_from", "booked_at",
		"cancelled_at", "completed_at", "created_at", "updated_at",
		"student_name", "student_email", "course_title", "teacher_id", "teacher_name",
		"class_start_time", "class_end_time", "duration_minutes",
	}).AddRow("b1", "s1", "c1", models.BookingStatusConfirmed, nil, now,
		nil, nil, now, now,
		"Ada Lovelace", "ada@example.com", "Algebra", "t1", "Grace Hopper",
		now.Add(time.Hour), now.Add(2*time.Hour), 60)
}

func TestBookingRepositoryListFiltersByStudent(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("b.student_id = $1")).
		WithArgs("s1").
		WillReturnRows(bookingDetailRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings b").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bookings, total, err := repo.List(context.Background(), models.BookingFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Algebra", bookings[0].CourseTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM bookings WHERE student_id = $1 AND class_id = $2 AND status IN ($3, $4) LIMIT 1")).
		WithArgs("s1", "c1", models.BookingStatusPending, models.BookingStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryExistsActiveNoRows(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery("SELECT 1 FROM bookings").
		WithArgs("s1", "c1", models.BookingStatusPending, models.BookingStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err := repo.ExistsActive(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListActiveNear(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	window := 30 * time.Minute
	mock.ExpectQuery(regexp.QuoteMeta("cl.start_time BETWEEN $4 AND $5")).
		WithArgs("s1", models.BookingStatusPending, models.BookingStatusConfirmed,
			start.Add(-window), start.Add(window)).
		WillReturnRows(bookingDetailRows())

	bookings, err := repo.ListActiveNear(context.Background(), "s1", start, window)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	booking := &models.Booking{StudentID: "s1", ClassID: "c1"}
	err := repo.Create(context.Background(), booking)
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryUpdateStatusStampsCancellation(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $2, cancelled_at = $3, updated_at = $3 WHERE id = $1")).
		WithArgs("b1", models.BookingStatusCancelled, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "b1", models.BookingStatusCancelled, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryUpdateStatusStampsCompletion(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $2, completed_at = $3, updated_at = $3 WHERE id = $1")).
		WithArgs("b1", models.BookingStatusNoShow, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "b1", models.BookingStatusNoShow, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
