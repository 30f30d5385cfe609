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

func newClassMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestClassRepositoryAdjustEnrolledCountApplies(t *testing.T) {
	db, mock, cleanup := newClassMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("enrolled_count + $2 <= max_capacity")).
		WithArgs("c1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.AdjustEnrolledCount(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryAdjustEnrolledCountRefusedAtCapacity(t *testing.T) {
	db, mock, cleanup := newClassMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("UPDATE classes SET enrolled_count").
		WithArgs("c1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.AdjustEnrolledCount(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListEndedBefore(t *testing.T) {
	db, mock, cleanup := newClassMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "course_id", "teacher_id", "start_time", "end_time",
		"max_capacity", "enrolled_count", "status", "created_at", "updated_at"}).
		AddRow("c1", "crs1", "t1", now.Add(-2*time.Hour), now.Add(-time.Hour),
			8, 5, models.ClassStatusScheduled, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("status = $1 AND end_time < $2")).
		WithArgs(models.ClassStatusScheduled, now).
		WillReturnRows(rows)

	classes, err := repo.ListEndedBefore(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "c1", classes[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newClassMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("INSERT INTO classes").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	class := &models.Class{CourseID: "crs1", TeacherID: "t1", MaxCapacity: 8}
	err := repo.Create(context.Background(), class)
	require.NoError(t, err)
	assert.NotEmpty(t, class.ID)
	assert.Equal(t, models.ClassStatusScheduled, class.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
