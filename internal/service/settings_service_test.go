package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type mockSettingsRepo struct {
	settings map[string]*models.SystemSetting
	seeded   []string
	upserted []*models.SystemSetting
}

func (m *mockSettingsRepo) List(ctx context.Context) ([]models.SystemSetting, error) {
	var out []models.SystemSetting
	for _, setting := range m.settings {
		out = append(out, *setting)
	}
	return out, nil
}

func (m *mockSettingsRepo) Find(ctx context.Context, key string) (*models.SystemSetting, error) {
	setting, ok := m.settings[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return setting, nil
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, setting *models.SystemSetting) error {
	if m.settings == nil {
		m.settings = make(map[string]*models.SystemSetting)
	}
	m.settings[setting.Key] = setting
	m.upserted = append(m.upserted, setting)
	return nil
}

func (m *mockSettingsRepo) SeedDefault(ctx context.Context, setting *models.SystemSetting) error {
	m.seeded = append(m.seeded, setting.Key)
	if m.settings == nil {
		m.settings = make(map[string]*models.SystemSetting)
	}
	if _, ok := m.settings[setting.Key]; !ok {
		m.settings[setting.Key] = setting
	}
	return nil
}

type mockSettingsCache struct {
	invalidate int
}

func (m *mockSettingsCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *mockSettingsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (m *mockSettingsCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidate++
	return nil
}

type mockAuditor struct {
	logs []*models.AuditLog
}

func (m *mockAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func defaultPolicies() SettingsDefaults {
	return SettingsDefaults{
		DuplicateWindow:     30 * time.Minute,
		SimilarityThreshold: 0.85,
		NoShowConsumesHours: true,
		WaitlistAutoPromote: true,
	}
}

func TestSettingsServiceSeedInsertsWellKnownKeys(t *testing.T) {
	repo := &mockSettingsRepo{}
	svc := NewSettingsService(repo, nil, nil, defaultPolicies(), time.Minute, zap.NewNop())

	require.NoError(t, svc.Seed(context.Background()))
	assert.ElementsMatch(t, []string{
		models.SettingDuplicateWindowMinutes,
		models.SettingSimilarityThreshold,
		models.SettingNoShowConsumesHours,
		models.SettingWaitlistAutoPromote,
	}, repo.seeded)
}

func TestSettingsServiceUpdateValidatesType(t *testing.T) {
	repo := &mockSettingsRepo{settings: map[string]*models.SystemSetting{
		models.SettingSimilarityThreshold: {
			Key:   models.SettingSimilarityThreshold,
			Value: "0.85",
			Type:  models.SettingTypeFloat,
		},
	}}
	cache := &mockSettingsCache{}
	auditor := &mockAuditor{}
	svc := NewSettingsService(repo, cache, auditor, defaultPolicies(), time.Minute, zap.NewNop())

	_, err := svc.Update(context.Background(), models.SettingSimilarityThreshold,
		UpdateSettingRequest{Value: "not-a-float"}, "admin-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.upserted)

	updated, err := svc.Update(context.Background(), models.SettingSimilarityThreshold,
		UpdateSettingRequest{Value: "0.90"}, "admin-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "0.90", updated.Value)
	assert.Equal(t, 1, cache.invalidate)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, models.AuditActionSettingsUpdate, auditor.logs[0].Action)
}

func TestSettingsServiceTypedGettersFallBackToDefaults(t *testing.T) {
	repo := &mockSettingsRepo{}
	svc := NewSettingsService(repo, nil, nil, defaultPolicies(), time.Minute, zap.NewNop())

	ctx := context.Background()
	assert.Equal(t, 30*time.Minute, svc.DuplicateWindow(ctx))
	assert.Equal(t, 0.85, svc.SimilarityThreshold(ctx))
	assert.True(t, svc.NoShowConsumesHours(ctx))
	assert.True(t, svc.WaitlistAutoPromote(ctx))
}

func TestSettingsServiceTypedGettersReadStoredValues(t *testing.T) {
	repo := &mockSettingsRepo{settings: map[string]*models.SystemSetting{
		models.SettingDuplicateWindowMinutes: {
			Key: models.SettingDuplicateWindowMinutes, Value: "45", Type: models.SettingTypeInt,
		},
		models.SettingSimilarityThreshold: {
			Key: models.SettingSimilarityThreshold, Value: "0.70", Type: models.SettingTypeFloat,
		},
		models.SettingWaitlistAutoPromote: {
			Key: models.SettingWaitlistAutoPromote, Value: "false", Type: models.SettingTypeBool,
		},
	}}
	svc := NewSettingsService(repo, nil, nil, defaultPolicies(), time.Minute, zap.NewNop())

	ctx := context.Background()
	assert.Equal(t, 45*time.Minute, svc.DuplicateWindow(ctx))
	assert.Equal(t, 0.70, svc.SimilarityThreshold(ctx))
	assert.False(t, svc.WaitlistAutoPromote(ctx))
}

func TestSettingsServiceThresholdRangeGuard(t *testing.T) {
	repo := &mockSettingsRepo{settings: map[string]*models.SystemSetting{
		models.SettingSimilarityThreshold: {
			Key: models.SettingSimilarityThreshold, Value: "3.5", Type: models.SettingTypeFloat,
		},
	}}
	svc := NewSettingsService(repo, nil, nil, defaultPolicies(), time.Minute, zap.NewNop())

	// Out-of-range stored values fall back to the default.
	assert.Equal(t, 0.85, svc.SimilarityThreshold(context.Background()))
}
