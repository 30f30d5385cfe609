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

func newSettingsMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSettingsRepositoryFind(t *testing.T) {
	db, mock, cleanup := newSettingsMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow(models.SettingSimilarityThreshold, "0.85", models.SettingTypeFloat, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM system_settings WHERE key = $1")).
		WithArgs(models.SettingSimilarityThreshold).
		WillReturnRows(rows)

	setting, err := repo.Find(context.Background(), models.SettingSimilarityThreshold)
	require.NoError(t, err)
	assert.Equal(t, "0.85", setting.Value)
	assert.Equal(t, models.SettingTypeFloat, setting.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newSettingsMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectExec("INSERT INTO system_settings").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	setting := &models.SystemSetting{
		Key:   models.SettingWaitlistAutoPromote,
		Value: "true",
		Type:  models.SettingTypeBool,
	}
	err := repo.Upsert(context.Background(), setting)
	require.NoError(t, err)
	assert.False(t, setting.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
