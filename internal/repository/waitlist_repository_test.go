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

func newWaitlistMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestWaitlistRepositoryPosition(t *testing.T) {
	db, mock, cleanup := newWaitlistMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	entry := &models.WaitlistEntry{ID: "w1", ClassID: "c1", CreatedAt: time.Now()}
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM waitlist_entries").
		WithArgs("c1", models.WaitlistStatusWaiting, entry.CreatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	position, err := repo.Position(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, 3, position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryFindNextWaiting(t *testing.T) {
	db, mock, cleanup := newWaitlistMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "class_id", "student_id", "status", "promoted_at", "created_at"}).
		AddRow("w1", "c1", "s1", models.WaitlistStatusWaiting, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC LIMIT 1")).
		WithArgs("c1", models.WaitlistStatusWaiting).
		WillReturnRows(rows)

	entry, err := repo.FindNextWaiting(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "w1", entry.ID)
	assert.Equal(t, "s1", entry.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryExpireOlderThan(t *testing.T) {
	db, mock, cleanup := newWaitlistMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	cutoff := time.Now().Add(-72 * time.Hour)
	mock.ExpectExec("UPDATE waitlist_entries SET status").
		WithArgs(models.WaitlistStatusExpired, models.WaitlistStatusWaiting, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	affected, err := repo.ExpireOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newWaitlistMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectExec("INSERT INTO waitlist_entries").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.WaitlistEntry{ClassID: "c1", StudentID: "s1"}
	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, models.WaitlistStatusWaiting, entry.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
